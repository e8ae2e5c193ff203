package server

import (
	"encoding/json"
	"errors"

	"citizenportal/internal/domain"
	"citizenportal/internal/engine"
)

// Request payloads

type AttachmentBody struct {
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

// SubmitRequestBody leaves every field optional so missing values come back as
// field-level validation errors instead of schema errors.
type SubmitRequestBody struct {
	ReferenceID      string           `json:"referenceId,omitempty" doc:"Pre-generated reference from POST /references; makes retries idempotent"`
	FullName         string           `json:"fullName,omitempty"`
	Phone            string           `json:"phone,omitempty" example:"+211123456789"`
	Email            string           `json:"email,omitempty"`
	NationalID       string           `json:"nationalId,omitempty"`
	PreferredContact string           `json:"preferredContact,omitempty"`
	Category         string           `json:"category,omitempty"`
	ServiceType      string           `json:"serviceType,omitempty"`
	Priority         string           `json:"priority,omitempty"`
	Title            string           `json:"title,omitempty"`
	Description      string           `json:"description,omitempty"`
	Attachments      []AttachmentBody `json:"attachments,omitempty"`
}

func (b SubmitRequestBody) options(actorID string) engine.SubmitOptions {
	opts := engine.SubmitOptions{
		ReferenceID: b.ReferenceID,
		ActorID:     actorID,
		Candidate: domain.Candidate{
			FullName:         b.FullName,
			Phone:            b.Phone,
			Email:            b.Email,
			NationalID:       b.NationalID,
			PreferredContact: b.PreferredContact,
			Category:         b.Category,
			ServiceType:      b.ServiceType,
			Priority:         b.Priority,
			Title:            b.Title,
			Description:      b.Description,
		},
	}
	for _, a := range b.Attachments {
		opts.Attachments = append(opts.Attachments, engine.AttachmentInput{Name: a.Name, Size: a.Size, Type: a.Type})
	}
	return opts
}

type ContactRequestBody struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message,omitempty"`
	Website  string `json:"website,omitempty" doc:"Leave empty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TransitionRequest struct {
	Status              string `json:"status" enum:"submitted,under-review,in-progress,completed,rejected"`
	Progress            *int   `json:"progress,omitempty" minimum:"0" maximum:"100"`
	Description         string `json:"description,omitempty"`
	By                  string `json:"by,omitempty"`
	AssignedTo          string `json:"assignedTo,omitempty"`
	Notes               string `json:"notes,omitempty"`
	EstimatedCompletion string `json:"estimatedCompletion,omitempty"`
}

type DocumentRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
	Kind string `json:"kind,omitempty" enum:"response,additional"`
}

type CreateStaffRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role" enum:"admin,officer,viewer"`
	Department string `json:"department,omitempty"`
}

// Response payloads

type RejectedAttachment struct {
	Name   string `json:"name"`
	Size   int64  `json:"size,omitempty"`
	Reason string `json:"reason"`
}

type SubmitResponse struct {
	ReferenceID         string               `json:"referenceId"`
	Request             domain.Request       `json:"request"`
	RejectedAttachments []RejectedAttachment `json:"rejectedAttachments"`
	Replayed            bool                 `json:"replayed"`
}

type LookupResponse struct {
	Request domain.Request `json:"request"`
	Source  string         `json:"source" enum:"store,seed"`
}

type ReferenceResponse struct {
	ReferenceID string `json:"referenceId"`
}

type CategoriesResponse struct {
	Items []engine.CategoryView `json:"items"`
}

type WhoAmIResponse struct {
	StaffID     string   `json:"staffId"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	Department  string   `json:"department,omitempty"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source" enum:"jwt,api_key"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedRequests struct {
	Items      []domain.Request `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type contactList struct {
	Items []domain.ContactSubmission `json:"items"`
}

type DocumentResponse struct {
	Attachment domain.Attachment `json:"attachment"`
	Request    domain.Request    `json:"request"`
}

// Conversion helpers

func rejectedAttachments(errs []error) []RejectedAttachment {
	out := []RejectedAttachment{}
	for _, err := range errs {
		var over *engine.OversizedAttachmentError
		var invalid *engine.InvalidAttachmentError
		switch {
		case errors.As(err, &over):
			out = append(out, RejectedAttachment{Name: over.Name, Size: over.Size, Reason: "too_large"})
		case errors.As(err, &invalid):
			out = append(out, RejectedAttachment{Name: invalid.Name, Reason: "invalid"})
		default:
			out = append(out, RejectedAttachment{Reason: err.Error()})
		}
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}
