package repository

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

// Sections reads and writes floor sections.
type Sections struct {
	q Querier
}

// NewSections binds the section repository to a datastore handle.
func NewSections(q Querier) *Sections {
	return &Sections{q: q}
}

// Create inserts a section. Names are unique.
func (r *Sections) Create(ctx context.Context, name string) (*model.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidArgument("section name is required")
	}

	res, err := r.q.ExecContext(ctx, `INSERT INTO sections (name) VALUES (?)`, name)
	if err != nil {
		return nil, classify("sections.create", "section", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("sections.create", "section", err)
	}

	now := time.Now().UTC()
	return &model.Section{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// List returns all sections ordered by name.
func (r *Sections) List(ctx context.Context) ([]model.Section, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM sections ORDER BY name ASC`)
	if err != nil {
		return nil, classify("sections.list", "section", err)
	}
	defer rows.Close()

	sections := make([]model.Section, 0)
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, classify("sections.list", "section", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("sections.list", "section", err)
	}
	return sections, nil
}

// Get returns a section by id.
func (r *Sections) Get(ctx context.Context, id int64) (*model.Section, error) {
	var s model.Section
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM sections WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, classify("sections.get", "section", err)
	}
	return &s, nil
}

// Delete removes a section that has no tables. The emptiness check and the
// delete are one statement, so a table added concurrently cannot be orphaned.
func (r *Sections) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM sections
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM `+"`tables`"+` WHERE section_id = ?)`,
		id, id)
	if err != nil {
		return classify("sections.delete", "section", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("sections.delete", "section", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return apperrors.ConstraintViolation("cannot delete section with existing tables", nil)
}
