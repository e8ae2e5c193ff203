package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenportal/internal/domain"
)

func validCandidate() domain.Candidate {
	return domain.Candidate{
		FullName:         "Jane Doe",
		Phone:            "+211123456789",
		NationalID:       "ID123456",
		PreferredContact: "sms",
		Category:         "identity",
		ServiceType:      "birth-certificate",
		Priority:         "medium",
		Title:            "Need birth certificate",
		Description:      "I require a certified copy of my birth certificate for passport application purposes.",
	}
}

func validate(c domain.Candidate) (domain.Candidate, error) {
	return domain.ValidateCandidate(c, domain.DefaultCatalog(), domain.Rules{PhoneCountryCode: "211"})
}

func fieldErrors(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr
}

func TestValidateCandidateAcceptsExample(t *testing.T) {
	got, err := validate(validCandidate())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.FullName)
}

func TestMinimumLengthBoundaries(t *testing.T) {
	cases := []struct {
		field string
		min   int
		set   func(*domain.Candidate, string)
	}{
		{"fullName", 2, func(c *domain.Candidate, v string) { c.FullName = v }},
		{"nationalId", 8, func(c *domain.Candidate, v string) { c.NationalID = v }},
		{"title", 5, func(c *domain.Candidate, v string) { c.Title = v }},
		{"description", 20, func(c *domain.Candidate, v string) { c.Description = v }},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			short := validCandidate()
			tc.set(&short, strings.Repeat("a", tc.min-1))
			_, err := validate(short)
			require.Error(t, err)
			assert.True(t, fieldErrors(t, err).Has(tc.field))

			exact := validCandidate()
			tc.set(&exact, strings.Repeat("a", tc.min))
			_, err = validate(exact)
			assert.NoError(t, err)
		})
	}
}

func TestPhoneFormat(t *testing.T) {
	for phone, ok := range map[string]bool{
		"+211123456789":  true,
		"0123456789":     false,
		"+211123":        false,
		"+2111234567890": false,
		"+254123456789":  false,
		"+211 12345678":  false,
	} {
		c := validCandidate()
		c.Phone = phone
		_, err := validate(c)
		if ok {
			assert.NoError(t, err, phone)
			continue
		}
		require.Error(t, err, phone)
		assert.True(t, fieldErrors(t, err).Has("phone"), phone)
	}
}

func TestPhoneFormatHonoursCountryCode(t *testing.T) {
	c := validCandidate()
	c.Phone = "+254123456789"
	_, err := domain.ValidateCandidate(c, domain.DefaultCatalog(), domain.Rules{PhoneCountryCode: "254"})
	assert.NoError(t, err)
}

func TestEmailOptional(t *testing.T) {
	c := validCandidate()
	c.Email = ""
	_, err := validate(c)
	assert.NoError(t, err)

	c.Email = "  Jane@Example.org "
	got, err := validate(c)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.org", got.Email)

	c.Email = "not-an-email"
	_, err = validate(c)
	require.Error(t, err)
	assert.True(t, fieldErrors(t, err).Has("email"))

	c.Email = "Jane <jane@example.org>"
	_, err = validate(c)
	require.Error(t, err)
}

func TestEmailNeedsDottedDomain(t *testing.T) {
	for _, v := range []string{"a@b", "jane@localhost", "jane@example", "jane@example.", "jane@.example.org", "jane@example..org"} {
		assert.False(t, domain.ValidEmail(v), v)
	}
	for _, v := range []string{"jane@example.com", "j.doe+forms@mail.city.gov"} {
		assert.True(t, domain.ValidEmail(v), v)
	}

	c := validCandidate()
	c.Email = "jane@localhost"
	_, err := validate(c)
	require.Error(t, err)
	assert.True(t, fieldErrors(t, err).Has("email"))
}

func TestServiceTypeMustBelongToCategory(t *testing.T) {
	c := validCandidate()
	c.ServiceType = "land-title"
	_, err := validate(c)
	require.Error(t, err)
	verr := fieldErrors(t, err)
	assert.True(t, verr.Has("serviceType"))
	assert.False(t, verr.Has("category"))
}

func TestUnknownEnumsRejected(t *testing.T) {
	c := validCandidate()
	c.Category = "tourism"
	c.Priority = "urgent"
	c.PreferredContact = "fax"
	_, err := validate(c)
	verr := fieldErrors(t, err)
	assert.True(t, verr.Has("category"))
	assert.True(t, verr.Has("priority"))
	assert.True(t, verr.Has("preferredContact"))
	assert.False(t, verr.Has("serviceType"), "service is not re-checked against an unknown category")
}

func TestEmptyCandidateReportsEveryRequiredField(t *testing.T) {
	_, err := validate(domain.Candidate{})
	verr := fieldErrors(t, err)
	for _, f := range []string{"fullName", "phone", "nationalId", "preferredContact", "category", "serviceType", "priority", "title", "description"} {
		assert.True(t, verr.Has(f), f)
	}
	assert.False(t, verr.Has("email"))
}

func TestValidateContact(t *testing.T) {
	_, err := domain.ValidateContact(domain.ContactCandidate{
		Name:    "Deng",
		Email:   "deng@example.org",
		Subject: "Road repair",
		Message: "The road to Bor needs attention.",
	})
	assert.NoError(t, err)

	_, err = domain.ValidateContact(domain.ContactCandidate{Name: "D", Email: "x", Subject: "a", Message: "short"})
	verr := fieldErrors(t, err)
	assert.Len(t, verr.Fields, 4)
}
