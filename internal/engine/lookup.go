package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
	"citizenportal/internal/metrics"
	"citizenportal/internal/seed"
	"citizenportal/internal/store"
)

// Lookup sources.
const (
	SourceStore = "store"
	SourceSeed  = "seed"
)

type LookupResult struct {
	Request domain.Request
	Source  string
}

// Lookup finds a request by exact reference id, falling back to the seed records.
func (e Engine) Lookup(ctx context.Context, referenceID string) (LookupResult, error) {
	ref := strings.TrimSpace(referenceID)
	if ref == "" {
		return LookupResult{}, ErrMissingInput
	}
	req, err := e.get(ctx, ref)
	switch {
	case err == nil:
		metrics.RecordLookup(SourceStore)
		return LookupResult{Request: req, Source: SourceStore}, nil
	case !errors.Is(err, store.ErrNotFound):
		return LookupResult{}, err
	}
	if r, ok := seed.Find(ref); ok {
		metrics.RecordLookup(SourceSeed)
		return LookupResult{Request: r, Source: SourceSeed}, nil
	}
	metrics.RecordLookup("not_found")
	return LookupResult{}, ErrNotFound
}

// get reads one request, retrying transient failures with a linear backoff.
func (e Engine) get(ctx context.Context, ref string) (domain.Request, error) {
	retries := e.cfg().Storage.ReadRetries
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Request{}, &PersistenceError{Op: "read", ReferenceID: ref, Retryable: true, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * e.RetryBackoff):
			}
		}
		sctx, cancel := e.storeCtx(ctx)
		start := time.Now()
		req, err := e.Store.Get(sctx, ref)
		cancel()
		observe("get", start, err)
		if err == nil {
			return req, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.Request{}, ErrNotFound
		}
		lastErr = err
		e.logger().WithError(err).WithFields(logrus.Fields{"reference_id": ref, "attempt": attempt + 1}).Warn("request read failed")
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Request{}, &PersistenceError{Op: "read", ReferenceID: ref, Retryable: true, Err: lastErr}
}
