package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
	"citizenportal/internal/events"
	"citizenportal/internal/metrics"
	"citizenportal/internal/store"
)

const maxReferenceAttempts = 5

// AttachmentInput is client-declared file metadata. Content never reaches the engine.
type AttachmentInput struct {
	Name string
	Size int64
	Type string
}

type SubmitOptions struct {
	Candidate   domain.Candidate
	Attachments []AttachmentInput
	// ReferenceID, when set, must come from NewReference and makes the call idempotent.
	ReferenceID string
	ActorID     string
}

type SubmitResult struct {
	Request domain.Request
	// Rejected lists attachments left out of the request, one error each.
	Rejected []error
	// Replayed is set when ReferenceID already held this same submission.
	Replayed bool
}

// CategoryView is a catalog category as exposed to clients.
type CategoryView struct {
	Value    string           `json:"value"`
	Label    string           `json:"label"`
	Services []domain.Service `json:"services"`
}

// Submit validates a candidate, assigns a reference id and persists the request.
func (e Engine) Submit(ctx context.Context, opts SubmitOptions) (SubmitResult, error) {
	cfg := e.cfg()
	cand, err := domain.ValidateCandidate(opts.Candidate, cfg.Catalog(), cfg.Rules())
	if err != nil {
		metrics.RecordRejected("validation")
		return SubmitResult{}, err
	}
	ref := strings.TrimSpace(opts.ReferenceID)
	if ref != "" && !e.Refs.Valid(ref) {
		metrics.RecordRejected("validation")
		return SubmitResult{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "referenceId", Reason: "not an issued reference id"}}}
	}

	accepted, rejected := e.partitionAttachments(opts.Attachments)
	ts := e.stamp()
	req := domain.Request{
		FullName:         cand.FullName,
		Phone:            cand.Phone,
		Email:            cand.Email,
		NationalID:       cand.NationalID,
		PreferredContact: cand.PreferredContact,
		Category:         cand.Category,
		ServiceType:      cand.ServiceType,
		Priority:         cand.Priority,
		Title:            cand.Title,
		Description:      cand.Description,
		Attachments:      accepted,
		Status:           domain.StatusSubmitted,
		Progress:         0,
		SubmittedAt:      ts,
		LastUpdated:      ts,
		Timeline: []domain.TimelineEvent{{
			Date:        ts,
			Status:      domain.StatusLabel(domain.StatusSubmitted),
			Description: "Request submitted and received",
			By:          "System",
		}},
	}

	var res SubmitResult
	if ref != "" {
		res, err = e.insertWithReference(ctx, req, ref)
	} else {
		res, err = e.insertGenerated(ctx, req)
	}
	if err != nil {
		var perr *PersistenceError
		if errors.As(err, &perr) {
			metrics.RecordRejected("persistence")
			e.logger().WithError(err).WithField("reference_id", perr.ReferenceID).Error("request not persisted")
		}
		return SubmitResult{}, err
	}
	res.Rejected = rejected
	log := e.logger().WithFields(logrus.Fields{"reference_id": res.Request.ReferenceID, "category": req.Category})
	if res.Replayed {
		log.Info("submission replayed")
		return res, nil
	}
	metrics.RecordSubmitted(req.Category, req.Priority)
	e.recordEvent(ctx, events.RequestSubmitted, "request", res.Request.ReferenceID, opts.ActorID, events.EventPayload{
		"status":      string(domain.StatusSubmitted),
		"category":    req.Category,
		"serviceType": req.ServiceType,
		"priority":    req.Priority,
		"attachments": len(accepted),
	})
	log.WithField("rejected_attachments", len(rejected)).Info("request submitted")
	return res, nil
}

func (e Engine) partitionAttachments(in []AttachmentInput) ([]domain.Attachment, []error) {
	limit := e.cfg().Intake.MaxAttachmentBytes
	accepted := []domain.Attachment{}
	var rejected []error
	for _, a := range in {
		name := strings.TrimSpace(a.Name)
		switch {
		case name == "":
			rejected = append(rejected, &InvalidAttachmentError{Reason: "has no name"})
		case a.Size <= 0:
			rejected = append(rejected, &InvalidAttachmentError{Name: name, Reason: "has no content"})
		case a.Size > limit:
			rejected = append(rejected, &OversizedAttachmentError{Name: name, Size: a.Size, Limit: limit})
		default:
			accepted = append(accepted, domain.Attachment{
				ID:   uuid.NewString(),
				Name: name,
				Size: a.Size,
				Type: strings.TrimSpace(a.Type),
				Kind: domain.AttachmentOriginal,
			})
		}
	}
	return accepted, rejected
}

func (e Engine) insertGenerated(ctx context.Context, req domain.Request) (SubmitResult, error) {
	var lastRef string
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := e.Refs.New()
		if err != nil {
			return SubmitResult{}, err
		}
		lastRef = ref
		req.ReferenceID = ref
		err = e.insert(ctx, req)
		if errors.Is(err, store.ErrDuplicate) {
			e.logger().WithField("reference_id", ref).Warn("reference id collision; regenerating")
			continue
		}
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Request: req}, nil
	}
	return SubmitResult{}, &PersistenceError{
		Op:          "write",
		ReferenceID: lastRef,
		Retryable:   true,
		Err:         fmt.Errorf("no unique reference id after %d attempts", maxReferenceAttempts),
	}
}

func (e Engine) insertWithReference(ctx context.Context, req domain.Request, ref string) (SubmitResult, error) {
	req.ReferenceID = ref
	err := e.insert(ctx, req)
	if err == nil {
		return SubmitResult{Request: req}, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return SubmitResult{}, err
	}
	existing, err := e.get(ctx, ref)
	if err != nil {
		return SubmitResult{}, err
	}
	if !sameSubmission(existing, req) {
		return SubmitResult{}, fmt.Errorf("%w: %s", ErrReferenceConflict, ref)
	}
	return SubmitResult{Request: existing, Replayed: true}, nil
}

// insert maps adapter failures other than a duplicate key to PersistenceError.
func (e Engine) insert(ctx context.Context, req domain.Request) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	start := time.Now()
	err := e.Store.Insert(sctx, req)
	observe("insert", start, err)
	if err == nil || errors.Is(err, store.ErrDuplicate) {
		return err
	}
	return &PersistenceError{Op: "write", ReferenceID: req.ReferenceID, Retryable: true, Err: err}
}

// sameSubmission compares the citizen-supplied content of two requests.
func sameSubmission(a, b domain.Request) bool {
	if a.FullName != b.FullName || a.Phone != b.Phone || a.Email != b.Email ||
		a.NationalID != b.NationalID || a.PreferredContact != b.PreferredContact ||
		a.Category != b.Category || a.ServiceType != b.ServiceType || a.Priority != b.Priority ||
		a.Title != b.Title || a.Description != b.Description {
		return false
	}
	originals := func(r domain.Request) []string {
		var out []string
		for _, at := range r.Attachments {
			if at.Kind == domain.AttachmentOriginal {
				out = append(out, fmt.Sprintf("%s/%d", at.Name, at.Size))
			}
		}
		return out
	}
	x, y := originals(a), originals(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
