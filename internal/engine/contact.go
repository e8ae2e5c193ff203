package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
	"citizenportal/internal/events"
	"citizenportal/internal/metrics"
)

// ContactReceived is the status of a newly stored contact message.
const ContactReceived = "received"

// SubmitContact stores a contact-form message.
func (e Engine) SubmitContact(ctx context.Context, c domain.ContactCandidate, actorID string) (domain.ContactSubmission, error) {
	if strings.TrimSpace(c.Honeypot) != "" {
		metrics.RecordRejected("spam")
		e.logger().Warn("contact honeypot filled; dropping submission")
		return domain.ContactSubmission{}, ErrSpam
	}
	valid, err := domain.ValidateContact(c)
	if err != nil {
		metrics.RecordRejected("validation")
		return domain.ContactSubmission{}, err
	}
	sub := domain.ContactSubmission{
		ID:          uuid.NewString(),
		Name:        valid.Name,
		Email:       valid.Email,
		Phone:       valid.Phone,
		Subject:     valid.Subject,
		Category:    valid.Category,
		Message:     valid.Message,
		Status:      ContactReceived,
		SubmittedAt: e.stamp(),
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.Repo.InsertContact(sctx, sub); err != nil {
		metrics.RecordRejected("persistence")
		return domain.ContactSubmission{}, &PersistenceError{Op: "write", Retryable: true, Err: err}
	}
	metrics.RecordContact()
	e.recordEvent(ctx, events.ContactReceived, "contact", sub.ID, actorID, events.EventPayload{"subject": sub.Subject, "category": sub.Category})
	e.logger().WithFields(logrus.Fields{"contact_id": sub.ID, "category": sub.Category}).Info("contact message received")
	return sub, nil
}

// ListContacts returns contact messages newest first.
func (e Engine) ListContacts(ctx context.Context, limit int) ([]domain.ContactSubmission, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	items, err := e.Repo.ListContacts(sctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Retryable: true, Err: err}
	}
	return items, nil
}
