// Package storetest holds the behaviour every store.Adapter must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenportal/internal/domain"
	"citizenportal/internal/store"
)

// Sample returns a fully populated request submitted at the given offset from a fixed instant.
func Sample(ref string, offset time.Duration) domain.Request {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(offset).Format(time.RFC3339)
	return domain.Request{
		ReferenceID:      ref,
		FullName:         "Jane Doe",
		Phone:            "+211123456789",
		NationalID:       "ID123456",
		PreferredContact: "sms",
		Category:         "identity",
		ServiceType:      "birth-certificate",
		Priority:         "medium",
		Title:            "Need birth certificate",
		Description:      "I require a certified copy of my birth certificate.",
		Attachments:      []domain.Attachment{{ID: "a1", Name: "scan.pdf", Size: 1024, Type: "application/pdf", Kind: domain.AttachmentOriginal}},
		Status:           domain.StatusSubmitted,
		SubmittedAt:      ts,
		LastUpdated:      ts,
		Timeline: []domain.TimelineEvent{{
			Date: ts, Status: "Submitted", Description: "Request submitted and received", By: "System",
		}},
	}
}

// Run exercises an adapter produced fresh by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) store.Adapter) {
	t.Run("EmptyLoad", func(t *testing.T) {
		a := open(t)
		all, err := a.LoadAll(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		want := Sample("REQ-ROUNDTRIP1", 0)
		require.NoError(t, a.Insert(ctx, want))
		got, err := a.Get(ctx, want.ReferenceID)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		all, err := a.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, want, all[0])
	})

	t.Run("GetMissing", func(t *testing.T) {
		a := open(t)
		_, err := a.Get(context.Background(), "REQ-NOPE")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DuplicateInsert", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		first := Sample("REQ-DUP", 0)
		require.NoError(t, a.Insert(ctx, first))
		second := Sample("REQ-DUP", time.Minute)
		second.Title = "Overwrite attempt"
		assert.ErrorIs(t, a.Insert(ctx, second), store.ErrDuplicate)
		got, err := a.Get(ctx, "REQ-DUP")
		require.NoError(t, err)
		assert.Equal(t, first.Title, got.Title)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- a.Insert(ctx, Sample(fmt.Sprintf("REQ-C%02d", i), time.Duration(i)*time.Second))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		all, err := a.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, n)
	})

	t.Run("Update", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		require.NoError(t, a.Insert(ctx, Sample("REQ-UPD", 0)))
		got, err := a.Update(ctx, "REQ-UPD", func(r *domain.Request) error {
			r.Status = domain.StatusUnderReview
			r.Progress = 25
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnderReview, got.Status)
		stored, err := a.Get(ctx, "REQ-UPD")
		require.NoError(t, err)
		assert.Equal(t, 25, stored.Progress)

		boom := errors.New("boom")
		_, err = a.Update(ctx, "REQ-UPD", func(r *domain.Request) error {
			r.Progress = 99
			return boom
		})
		assert.ErrorIs(t, err, boom)
		stored, err = a.Get(ctx, "REQ-UPD")
		require.NoError(t, err)
		assert.Equal(t, 25, stored.Progress, "failed update must not persist")

		_, err = a.Update(ctx, "REQ-MISSING", func(*domain.Request) error { return nil })
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListNewestFirstWithCursor", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		for i := 0; i < 5; i++ {
			r := Sample(fmt.Sprintf("REQ-L%d", i), time.Duration(i)*time.Hour)
			if i%2 == 0 {
				r.Category = "land"
				r.ServiceType = "land-title"
			}
			require.NoError(t, a.Insert(ctx, r))
		}
		page, err := a.List(ctx, store.Filter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "REQ-L4", page[0].ReferenceID)
		assert.Equal(t, "REQ-L3", page[1].ReferenceID)

		last := page[1]
		next, err := a.List(ctx, store.Filter{Limit: 2, CursorSubmittedAt: last.SubmittedAt, CursorReferenceID: last.ReferenceID})
		require.NoError(t, err)
		require.Len(t, next, 2)
		assert.Equal(t, "REQ-L2", next[0].ReferenceID)

		land, err := a.List(ctx, store.Filter{Category: "land"})
		require.NoError(t, err)
		assert.Len(t, land, 3)

		none, err := a.List(ctx, store.Filter{Status: domain.StatusCompleted})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("SaveAllReplaces", func(t *testing.T) {
		ctx := context.Background()
		a := open(t)
		require.NoError(t, a.Insert(ctx, Sample("REQ-OLD", 0)))
		require.NoError(t, a.SaveAll(ctx, []domain.Request{Sample("REQ-NEW1", 0), Sample("REQ-NEW2", time.Minute)}))
		all, err := a.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		_, err = a.Get(ctx, "REQ-OLD")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
