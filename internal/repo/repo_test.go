package repo_test

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenportal/internal/db"
	"citizenportal/internal/domain"
	"citizenportal/internal/events"
	"citizenportal/internal/migrate"
	"citizenportal/internal/repo"
	"citizenportal/internal/store"
	"citizenportal/internal/store/storetest"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	return conn
}

func newRepo(t *testing.T) repo.Repo {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return repo.Repo{DB: openDB(t), Logger: l}
}

func TestRepoContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter { return newRepo(t) })
}

func TestRepoSkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.Insert(ctx, storetest.Sample("REQ-GOOD", 0)))
	_, err := r.DB.ExecContext(ctx, `INSERT INTO requests(reference_id,status,category,priority,submitted_at,last_updated,payload_json)
		VALUES ('REQ-BAD','submitted','identity','low','2026-03-01T00:00:00Z','2026-03-01T00:00:00Z','{broken')`)
	require.NoError(t, err)

	all, err := r.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "REQ-GOOD", all[0].ReferenceID)

	_, err = r.Get(ctx, "REQ-BAD")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEventsLog(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	w := events.Writer{DB: r.DB, Now: func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }}

	id, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)

	require.NoError(t, w.Append(ctx, nil, events.RequestSubmitted, "request", "REQ-1", "", events.EventPayload{"status": "submitted"}))
	require.NoError(t, w.Append(ctx, nil, events.RequestStatusChanged, "request", "REQ-1", "staff-1", nil))
	require.NoError(t, w.Append(ctx, nil, events.ContactReceived, "contact", "c-1", "", nil))

	latest, err := r.LatestEvents(ctx, 10, 0, repo.EventFilter{EntityKind: "request"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, events.RequestStatusChanged, latest[0].Type)
	assert.Equal(t, "system", latest[1].ActorID)

	after, err := r.EventsAfter(ctx, latest[1].ID, 10)
	require.NoError(t, err)
	assert.Len(t, after, 2)

	id, err = r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestStaffAndKeys(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := domain.StaffUser{ID: "s1", Email: "officer@example.org", Role: domain.RoleOfficer, PasswordHash: "x", CreatedAt: "2026-03-01T00:00:00Z"}
	require.NoError(t, r.InsertStaff(ctx, u))
	assert.ErrorIs(t, r.InsertStaff(ctx, domain.StaffUser{ID: "s2", Email: u.Email, Role: domain.RoleViewer, PasswordHash: "y"}), repo.ErrEmailTaken)

	got, err := r.GetStaffByEmail(ctx, " Officer@Example.org ")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	require.NoError(t, r.SetStaffRole(ctx, "s1", domain.RoleAdmin))
	got, err = r.GetStaff(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.ErrorIs(t, r.SetStaffRole(ctx, "missing", domain.RoleAdmin), repo.ErrNotFound)

	key := domain.APIKey{ID: "k1", StaffID: "s1", Name: "ci", KeyHash: repo.HashAPIKey("secret"), CreatedAt: "2026-03-01T00:00:00Z"}
	require.NoError(t, r.InsertAPIKey(ctx, key))
	found, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(" secret "))
	require.NoError(t, err)
	assert.Equal(t, "k1", found.ID)

	keys, err := r.ListAPIKeys(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, r.DeleteAPIKey(ctx, "k1"))
	_, err = r.GetAPIKeyByHash(ctx, key.KeyHash)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.InsertContact(ctx, domain.ContactSubmission{ID: "c1", Name: "Deng", Email: "d@example.org", Subject: "Road", Message: "Please fix the road.", Status: "received", SubmittedAt: "2026-03-01T00:00:00Z"}))
	require.NoError(t, r.InsertContact(ctx, domain.ContactSubmission{ID: "c2", Name: "Achol", Email: "a@example.org", Subject: "Water", Message: "Borehole is broken.", Status: "received", SubmittedAt: "2026-03-02T00:00:00Z"}))
	list, err := r.ListContacts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)
}
