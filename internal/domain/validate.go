package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Priorities accepted at intake.
var Priorities = []string{"low", "medium", "high"}

// ContactMethods accepted at intake.
var ContactMethods = []string{"phone", "sms", "email", "in-person"}

// Candidate is the citizen-supplied part of a request before it is accepted.
type Candidate struct {
	FullName         string `json:"fullName"`
	Phone            string `json:"phone"`
	Email            string `json:"email,omitempty"`
	NationalID       string `json:"nationalId"`
	PreferredContact string `json:"preferredContact"`
	Category         string `json:"category"`
	ServiceType      string `json:"serviceType"`
	Priority         string `json:"priority"`
	Title            string `json:"title"`
	Description      string `json:"description"`
}

// Rules holds the configurable parts of intake validation.
type Rules struct {
	PhoneCountryCode string
}

func (r Rules) countryCode() string {
	if r.PhoneCountryCode == "" {
		return "211"
	}
	return r.PhoneCountryCode
}

const (
	minFullName    = 2
	minNationalID  = 8
	minTitle       = 5
	minDescription = 20
)

// FieldError is one failed constraint.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every failed constraint of a candidate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Normalize trims every field and lowercases the email.
func (c Candidate) Normalize() Candidate {
	c.FullName = strings.TrimSpace(c.FullName)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.PreferredContact = strings.TrimSpace(c.PreferredContact)
	c.Category = strings.TrimSpace(c.Category)
	c.ServiceType = strings.TrimSpace(c.ServiceType)
	c.Priority = strings.TrimSpace(c.Priority)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	return c
}

// ValidateCandidate normalizes c and checks it against the catalog and rules.
// It returns a *ValidationError listing every failed field.
func ValidateCandidate(c Candidate, catalog Catalog, rules Rules) (Candidate, error) {
	c = c.Normalize()
	verr := &ValidationError{}

	if n := utf8.RuneCountInString(c.FullName); n < minFullName {
		verr.add("fullName", "must be at least %d characters", minFullName)
	}
	if !phonePattern(rules.PhoneCountryCode).MatchString(c.Phone) {
		verr.add("phone", "must be in format +%sXXXXXXXXX", rules.countryCode())
	}
	if c.Email != "" && !ValidEmail(c.Email) {
		verr.add("email", "must be a valid email address")
	}
	if n := utf8.RuneCountInString(c.NationalID); n < minNationalID {
		verr.add("nationalId", "must be at least %d characters", minNationalID)
	}
	if !contains(ContactMethods, c.PreferredContact) {
		verr.add("preferredContact", "must be one of %s", strings.Join(ContactMethods, ", "))
	}
	cat, ok := catalog.Find(c.Category)
	switch {
	case c.Category == "":
		verr.add("category", "is required")
	case !ok:
		verr.add("category", "unknown category %q", c.Category)
	}
	switch {
	case c.ServiceType == "":
		verr.add("serviceType", "is required")
	case ok && !cat.HasService(c.ServiceType):
		verr.add("serviceType", "%q is not offered in category %s", c.ServiceType, c.Category)
	}
	if !contains(Priorities, c.Priority) {
		verr.add("priority", "must be one of %s", strings.Join(Priorities, ", "))
	}
	if n := utf8.RuneCountInString(c.Title); n < minTitle {
		verr.add("title", "must be at least %d characters", minTitle)
	}
	if n := utf8.RuneCountInString(c.Description); n < minDescription {
		verr.add("description", "must be at least %d characters", minDescription)
	}

	if len(verr.Fields) > 0 {
		return c, verr
	}
	return c, nil
}

// ContactCandidate is a contact-form message before it is accepted.
type ContactCandidate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Subject  string `json:"subject"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
	Honeypot string `json:"honeypot,omitempty"`
}

// ValidateContact trims c and checks the contact form constraints.
func ValidateContact(c ContactCandidate) (ContactCandidate, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.Subject = strings.TrimSpace(c.Subject)
	c.Category = strings.TrimSpace(c.Category)
	c.Message = strings.TrimSpace(c.Message)

	verr := &ValidationError{}
	if utf8.RuneCountInString(c.Name) < 2 {
		verr.add("name", "must be at least 2 characters")
	}
	if !ValidEmail(c.Email) {
		verr.add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(c.Subject) < 3 {
		verr.add("subject", "must be at least 3 characters")
	}
	if utf8.RuneCountInString(c.Message) < 10 {
		verr.add("message", "must be at least 10 characters")
	}
	if len(verr.Fields) > 0 {
		return c, verr
	}
	return c, nil
}

var defaultPhonePattern = regexp.MustCompile(`^\+211\d{9}$`)

func phonePattern(countryCode string) *regexp.Regexp {
	if countryCode == "" || countryCode == "211" {
		return defaultPhonePattern
	}
	return regexp.MustCompile(`^\+` + regexp.QuoteMeta(countryCode) + `\d{9}$`)
}

// ValidEmail accepts a bare address whose domain has at least two labels.
func ValidEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <a@b>"; only bare addresses are valid here.
	if addr.Address != v {
		return false
	}
	at := strings.LastIndex(v, "@")
	if at < 0 {
		return false
	}
	labels := strings.Split(v[at+1:], ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
