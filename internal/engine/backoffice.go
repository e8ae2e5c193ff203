package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
	"citizenportal/internal/events"
	"citizenportal/internal/metrics"
	"citizenportal/internal/store"
)

// TransitionOptions moves a request along its lifecycle. To may equal the
// current status to record progress or notes without a status change.
type TransitionOptions struct {
	ReferenceID         string
	To                  domain.Status
	Progress            *int
	Description         string
	By                  string
	AssignedTo          string
	Notes               string
	EstimatedCompletion string
	ActorID             string
}

// Transition applies a status change under the adapter's write lock.
func (e Engine) Transition(ctx context.Context, opts TransitionOptions) (domain.Request, error) {
	if strings.TrimSpace(opts.ReferenceID) == "" {
		return domain.Request{}, ErrMissingInput
	}
	if _, err := domain.ParseStatus(string(opts.To)); err != nil {
		return domain.Request{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if opts.EstimatedCompletion != "" {
		if _, err := time.Parse(time.RFC3339, opts.EstimatedCompletion); err != nil {
			return domain.Request{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "estimatedCompletion", Reason: "must be an RFC 3339 timestamp"}}}
		}
	}
	var from domain.Status
	updated, err := e.update(ctx, opts.ReferenceID, func(r *domain.Request) error {
		from = r.Status
		ts := e.stampAfter(*r)
		sameStatus := opts.To == r.Status
		if sameStatus && r.Status.IsTerminal() || !sameStatus && !domain.CanTransition(r.Status, opts.To) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, opts.To)
		}
		progress, err := nextProgress(r.Progress, opts.To, opts.Progress)
		if err != nil {
			return err
		}
		r.Status = opts.To
		r.Progress = progress
		r.LastUpdated = ts
		if opts.AssignedTo != "" {
			r.AssignedTo = opts.AssignedTo
		}
		if opts.Notes != "" {
			r.Notes = opts.Notes
		}
		if opts.EstimatedCompletion != "" {
			r.EstimatedCompletion = opts.EstimatedCompletion
		}
		desc := strings.TrimSpace(opts.Description)
		if desc == "" {
			if sameStatus {
				desc = fmt.Sprintf("Progress updated to %d%%", progress)
			} else {
				desc = "Status changed to " + domain.StatusLabel(opts.To)
			}
		}
		r.Timeline = append(r.Timeline, domain.TimelineEvent{
			Date:        ts,
			Status:      domain.StatusLabel(opts.To),
			Description: desc,
			By:          byline(opts.By, opts.ActorID),
		})
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}
	metrics.RecordStatusChange(string(from), string(updated.Status))
	e.recordEvent(ctx, events.RequestStatusChanged, "request", updated.ReferenceID, opts.ActorID, events.EventPayload{
		"from":     string(from),
		"to":       string(updated.Status),
		"progress": updated.Progress,
	})
	e.logger().WithFields(logrus.Fields{"reference_id": updated.ReferenceID, "status": updated.Status, "progress": updated.Progress}).Info("request transitioned")
	return updated, nil
}

// nextProgress keeps progress monotonic; completed always lands on 100.
func nextProgress(current int, to domain.Status, requested *int) (int, error) {
	if requested == nil {
		if to == domain.StatusRejected {
			return current, nil
		}
		return max(current, domain.DefaultProgress(to)), nil
	}
	p := *requested
	switch {
	case p < 0 || p > 100:
		return 0, &domain.ValidationError{Fields: []domain.FieldError{{Field: "progress", Reason: "must be between 0 and 100"}}}
	case p < current:
		return 0, fmt.Errorf("%w: %d < %d", ErrProgressDecrease, p, current)
	case to == domain.StatusCompleted && p != 100:
		return 0, &domain.ValidationError{Fields: []domain.FieldError{{Field: "progress", Reason: "completed requests are at 100"}}}
	}
	return p, nil
}

func byline(by, actorID string) string {
	if s := strings.TrimSpace(by); s != "" {
		return s
	}
	if actorID != "" {
		return actorID
	}
	return "Staff"
}

type DocumentOptions struct {
	ReferenceID string
	Name        string
	Size        int64
	Type        string
	Kind        string
	ActorID     string
}

// AddDocument attaches staff-produced file metadata to a request.
func (e Engine) AddDocument(ctx context.Context, opts DocumentOptions) (domain.Request, domain.Attachment, error) {
	if strings.TrimSpace(opts.ReferenceID) == "" {
		return domain.Request{}, domain.Attachment{}, ErrMissingInput
	}
	kind := opts.Kind
	if kind == "" {
		kind = domain.AttachmentResponse
	}
	if kind != domain.AttachmentResponse && kind != domain.AttachmentAdditional {
		return domain.Request{}, domain.Attachment{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "kind", Reason: "must be response or additional"}}}
	}
	accepted, rejected := e.partitionAttachments([]AttachmentInput{{Name: opts.Name, Size: opts.Size, Type: opts.Type}})
	if len(rejected) > 0 {
		return domain.Request{}, domain.Attachment{}, rejected[0]
	}
	doc := accepted[0]
	doc.Kind = kind
	updated, err := e.update(ctx, opts.ReferenceID, func(r *domain.Request) error {
		r.Attachments = append(r.Attachments, doc)
		r.LastUpdated = e.stampAfter(*r)
		return nil
	})
	if err != nil {
		return domain.Request{}, domain.Attachment{}, err
	}
	e.recordEvent(ctx, events.RequestDocumentAdded, "request", updated.ReferenceID, opts.ActorID, events.EventPayload{
		"attachmentId": doc.ID,
		"name":         doc.Name,
		"kind":         doc.Kind,
	})
	return updated, doc, nil
}

func (e Engine) update(ctx context.Context, ref string, fn func(*domain.Request) error) (domain.Request, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	start := time.Now()
	updated, err := e.Store.Update(sctx, ref, fn)
	observe("update", start, err)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.Request{}, ErrNotFound
	case isDomainError(err):
		return domain.Request{}, err
	}
	return domain.Request{}, &PersistenceError{Op: "write", ReferenceID: ref, Retryable: true, Err: err}
}

func isDomainError(err error) bool {
	var verr *domain.ValidationError
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrProgressDecrease) || errors.As(err, &verr)
}

type ListOptions struct {
	Status   domain.Status
	Category string
	Limit    int
	Cursor   string
}

type ListResult struct {
	Requests   []domain.Request
	NextCursor string
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// List returns stored requests newest first. Seed records are not listed.
func (e Engine) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	cursorTS, cursorID, err := parseCompositeCursor(opts.Cursor)
	if err != nil {
		return ListResult{}, ErrInvalidCursor
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	start := time.Now()
	items, err := e.Store.List(sctx, store.Filter{
		Status:            opts.Status,
		Category:          opts.Category,
		Limit:             limit + 1,
		CursorSubmittedAt: cursorTS,
		CursorReferenceID: cursorID,
	})
	observe("list", start, err)
	if err != nil {
		return ListResult{}, &PersistenceError{Op: "read", Retryable: true, Err: err}
	}
	res := ListResult{Requests: items}
	if len(items) > limit {
		res.Requests = items[:limit]
		last := items[limit-1]
		res.NextCursor = composeCursor(last.SubmittedAt, last.ReferenceID)
	}
	return res, nil
}

type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByCategory map[string]int `json:"byCategory"`
	ByPriority map[string]int `json:"byPriority"`
}

// Stats counts stored requests for the back-office dashboard.
func (e Engine) Stats(ctx context.Context) (Stats, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	start := time.Now()
	all, err := e.Store.LoadAll(sctx)
	observe("load_all", start, err)
	if err != nil {
		return Stats{}, &PersistenceError{Op: "read", Retryable: true, Err: err}
	}
	s := Stats{ByStatus: map[string]int{}, ByCategory: map[string]int{}, ByPriority: map[string]int{}}
	for _, st := range domain.Statuses {
		s.ByStatus[string(st)] = 0
	}
	for _, r := range all {
		s.Total++
		s.ByStatus[string(r.Status)]++
		s.ByCategory[r.Category]++
		s.ByPriority[r.Priority]++
	}
	return s, nil
}
