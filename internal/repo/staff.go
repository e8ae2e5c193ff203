package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"citizenportal/internal/domain"
)

var ErrEmailTaken = errors.New("email already registered")

// InsertStaff writes the account and runs audit in the same transaction, so a
// failed audit write leaves no account behind.
func (r Repo) InsertStaff(ctx context.Context, u domain.StaffUser, audit ...func(*sql.Tx) error) error {
	if u.ID == "" || u.Email == "" || u.PasswordHash == "" {
		return errors.New("id, email and password hash required")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO staff_users(id,email,role,department,password_hash,created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Email, u.Role, nullable(u.Department), u.PasswordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEmailTaken
		}
		return err
	}
	if err := runAudit(tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

func runAudit(tx *sql.Tx, audit []func(*sql.Tx) error) error {
	for _, fn := range audit {
		if err := fn(tx); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
	}
	return nil
}

const staffColumns = `id, email, role, COALESCE(department,''), password_hash, created_at`

func (r Repo) GetStaff(ctx context.Context, id string) (domain.StaffUser, error) {
	return scanStaff(r.DB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_users WHERE id=?`, id))
}

func (r Repo) GetStaffByEmail(ctx context.Context, email string) (domain.StaffUser, error) {
	return scanStaff(r.DB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r Repo) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+staffColumns+` FROM staff_users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.StaffUser{}
	for rows.Next() {
		u, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// SetStaffRole changes the role of an existing staff user.
func (r Repo) SetStaffRole(ctx context.Context, id, role string, audit ...func(*sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE staff_users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := runAudit(tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaff(row rowScanner) (domain.StaffUser, error) {
	var u domain.StaffUser
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.Department, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StaffUser{}, ErrNotFound
	}
	return u, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
