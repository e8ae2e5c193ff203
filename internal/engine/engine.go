package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/config"
	"citizenportal/internal/domain"
	"citizenportal/internal/events"
	"citizenportal/internal/metrics"
	"citizenportal/internal/refid"
	"citizenportal/internal/repo"
	"citizenportal/internal/store"
)

// Engine runs the request lifecycle. Store holds requests; Repo holds everything
// else (events, contacts, staff) and is always SQLite.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Store  store.Adapter
	Events events.Writer
	Config *config.Config
	Refs   refid.Generator
	Logger logrus.FieldLogger
	Now    func() time.Time
	// RetryBackoff is the base delay between read retries.
	RetryBackoff time.Duration
}

// New wires an engine. A nil adapter selects the SQLite repo.
func New(db *sql.DB, cfg *config.Config, adapter store.Adapter, logger logrus.FieldLogger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := repo.Repo{DB: db, Logger: logger}
	if adapter == nil {
		adapter = r
	}
	return Engine{
		DB:           db,
		Repo:         r,
		Store:        adapter,
		Events:       events.Writer{DB: db},
		Config:       cfg,
		Refs:         refid.Generator{Prefix: cfg.Intake.ReferencePrefix},
		Logger:       logger,
		Now:          time.Now,
		RetryBackoff: 50 * time.Millisecond,
	}
}

var (
	// ErrNotFound matches store.ErrNotFound with errors.Is.
	ErrNotFound          = fmt.Errorf("request %w", store.ErrNotFound)
	ErrMissingInput      = errors.New("reference id is required")
	ErrReferenceConflict = errors.New("reference id already used by a different submission")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProgressDecrease  = errors.New("progress may not decrease")
	ErrSpam              = errors.New("submission rejected")
)

// PersistenceError reports a storage failure. When Retryable is set the caller
// may repeat the call; writes should replay with ReferenceID.
type PersistenceError struct {
	Op          string
	ReferenceID string
	Retryable   bool
	Err         error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("persistence %s failed", e.Op)
	if e.ReferenceID != "" {
		msg += " for " + e.ReferenceID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OversizedAttachmentError rejects a single attachment over the size ceiling.
type OversizedAttachmentError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *OversizedAttachmentError) Error() string {
	return fmt.Sprintf("attachment %s is %d bytes; limit is %d", e.Name, e.Size, e.Limit)
}

// InvalidAttachmentError rejects attachment metadata that cannot describe a file.
type InvalidAttachmentError struct {
	Name   string
	Reason string
}

func (e *InvalidAttachmentError) Error() string {
	if e.Name == "" {
		return "attachment " + e.Reason
	}
	return fmt.Sprintf("attachment %s %s", e.Name, e.Reason)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// stampAfter is taken under the adapter's write lock and never sorts before
// the request's latest change, so the timeline stays ascending.
func (e Engine) stampAfter(r domain.Request) string {
	ts := e.stamp()
	if ts < r.LastUpdated {
		return r.LastUpdated
	}
	return ts
}

func (e Engine) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// storeCtx bounds one adapter call by storage.timeout.
func (e Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg().Storage.Timeout)
}

// recordEvent appends to the event log. The write it describes has already
// committed, so a failure here is logged rather than returned.
func (e Engine) recordEvent(ctx context.Context, evtType, kind, id, actorID string, payload events.EventPayload) {
	if e.DB == nil {
		return
	}
	if err := e.Events.Append(ctx, e.DB, evtType, kind, id, actorID, payload); err != nil {
		e.logger().WithError(err).WithFields(logrus.Fields{"event": evtType, "entity_id": id}).Error("append event")
	}
}

// NewReference pre-generates a reference id a client can submit with later, which
// makes a retried submission idempotent.
func (e Engine) NewReference() (string, error) {
	return e.Refs.New()
}

// Catalog returns the categories accepted at intake.
func (e Engine) Catalog() []CategoryView {
	cat := e.cfg().Catalog()
	out := make([]CategoryView, 0, len(cat))
	for _, c := range cat {
		out = append(out, CategoryView{Value: c.Value, Label: c.Label, Services: c.Services})
	}
	return out
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

// ErrInvalidCursor is returned by List for a cursor it did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

func observe(op string, start time.Time, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate) {
		err = nil
	}
	metrics.ObserveStore(op, start, err)
}
