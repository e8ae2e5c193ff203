package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/domain"
	"citizenportal/internal/store"
)

// Repo is the SQLite backend. Requests are keyed by reference id with the full
// record kept as JSON; the indexed columns only serve listing.
type Repo struct {
	DB     *sql.DB
	Logger logrus.FieldLogger
}

var ErrNotFound = store.ErrNotFound

var _ store.Adapter = Repo{}

func (r Repo) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}

func (r Repo) LoadAll(ctx context.Context) ([]domain.Request, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT reference_id, payload_json FROM requests ORDER BY submitted_at, reference_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Request{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		req, ok := r.decode(id, payload)
		if !ok {
			continue
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

func (r Repo) SaveAll(ctx context.Context, requests []domain.Request) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM requests`); err != nil {
		return fmt.Errorf("clear requests: %w", err)
	}
	for _, req := range requests {
		if err := insertRequest(ctx, tx, req); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r Repo) Insert(ctx context.Context, req domain.Request) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var n int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE reference_id=?`, req.ReferenceID).Scan(&n)
	if err == nil {
		return store.ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := insertRequest(ctx, tx, req); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) Get(ctx context.Context, referenceID string) (domain.Request, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT payload_json FROM requests WHERE reference_id=?`, referenceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, ErrNotFound
	}
	if err != nil {
		return domain.Request{}, err
	}
	req, ok := r.decode(referenceID, payload)
	if !ok {
		return domain.Request{}, ErrNotFound
	}
	return req, nil
}

func (r Repo) Update(ctx context.Context, referenceID string, fn func(*domain.Request) error) (domain.Request, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()
	var payload string
	err = tx.QueryRowContext(ctx, `SELECT payload_json FROM requests WHERE reference_id=?`, referenceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, ErrNotFound
	}
	if err != nil {
		return domain.Request{}, err
	}
	req, ok := r.decode(referenceID, payload)
	if !ok {
		return domain.Request{}, ErrNotFound
	}
	if err := fn(&req); err != nil {
		return domain.Request{}, err
	}
	req.ReferenceID = referenceID
	data, err := json.Marshal(req)
	if err != nil {
		return domain.Request{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE requests SET status=?, category=?, priority=?, last_updated=?, payload_json=? WHERE reference_id=?`,
		string(req.Status), req.Category, req.Priority, req.LastUpdated, string(data), referenceID); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	return req, nil
}

func (r Repo) List(ctx context.Context, f store.Filter) ([]domain.Request, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.CursorSubmittedAt != "" && f.CursorReferenceID != "" {
		clauses = append(clauses, "(submitted_at < ? OR (submitted_at = ? AND reference_id < ?))")
		args = append(args, f.CursorSubmittedAt, f.CursorSubmittedAt, f.CursorReferenceID)
	}
	query := `SELECT reference_id, payload_json FROM requests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, reference_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Request{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		if req, ok := r.decode(id, payload); ok {
			res = append(res, req)
		}
	}
	return res, rows.Err()
}

// Close is a no-op; the connection belongs to whoever opened it.
func (r Repo) Close() error { return nil }

func (r Repo) decode(id, payload string) (domain.Request, bool) {
	var req domain.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		r.logger().WithError(err).WithField("reference_id", id).Warn("skipping unreadable request record")
		return domain.Request{}, false
	}
	req.ReferenceID = id
	return req, true
}

func insertRequest(ctx context.Context, tx *sql.Tx, req domain.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO requests(reference_id,status,category,priority,submitted_at,last_updated,payload_json) VALUES (?,?,?,?,?,?,?)`,
		req.ReferenceID, string(req.Status), req.Category, req.Priority, req.SubmittedAt, req.LastUpdated, string(data))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert request %s: %w", req.ReferenceID, err)
	}
	return nil
}
