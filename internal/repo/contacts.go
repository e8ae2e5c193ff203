package repo

import (
	"context"

	"citizenportal/internal/domain"
)

func (r Repo) InsertContact(ctx context.Context, c domain.ContactSubmission) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO contact_submissions(id,name,email,phone,subject,category,message,status,submitted_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Email, nullable(c.Phone), c.Subject, nullable(c.Category), c.Message, c.Status, c.SubmittedAt)
	return err
}

// ListContacts returns submissions newest first.
func (r Repo) ListContacts(ctx context.Context, limit int) ([]domain.ContactSubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,email,COALESCE(phone,''),subject,COALESCE(category,''),message,status,submitted_at
		FROM contact_submissions ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ContactSubmission{}
	for rows.Next() {
		var c domain.ContactSubmission
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Category, &c.Message, &c.Status, &c.SubmittedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
