// Package store defines the persistence boundary for citizen requests.
package store

import (
	"context"
	"errors"

	"citizenportal/internal/domain"
)

// CollectionKey names the stored requests collection.
const CollectionKey = "citizenRequests"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("reference id already exists")
)

// Filter narrows List results. Zero values mean no filter.
type Filter struct {
	Status   domain.Status
	Category string
	Limit    int
	// Cursor is the submittedAt|referenceId of the last item of the previous page.
	CursorSubmittedAt string
	CursorReferenceID string
}

// Adapter is implemented by every request backend.
type Adapter interface {
	// LoadAll returns every readable request; unreadable data counts as absent.
	LoadAll(ctx context.Context) ([]domain.Request, error)
	// SaveAll replaces the whole collection atomically.
	SaveAll(ctx context.Context, requests []domain.Request) error
	// Insert appends r, returning ErrDuplicate if its reference id is taken.
	Insert(ctx context.Context, r domain.Request) error
	Get(ctx context.Context, referenceID string) (domain.Request, error)
	// Update applies fn to the stored request under the backend's write lock.
	Update(ctx context.Context, referenceID string, fn func(*domain.Request) error) (domain.Request, error)
	// List returns requests newest first.
	List(ctx context.Context, f Filter) ([]domain.Request, error)
	Close() error
}

// Matches reports whether r passes the status and category parts of f.
func (f Filter) Matches(r domain.Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	return true
}

// After reports whether r sorts after the cursor in newest-first order.
func (f Filter) After(r domain.Request) bool {
	if f.CursorSubmittedAt == "" || f.CursorReferenceID == "" {
		return true
	}
	if r.SubmittedAt != f.CursorSubmittedAt {
		return r.SubmittedAt < f.CursorSubmittedAt
	}
	return r.ReferenceID < f.CursorReferenceID
}
