package repository

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

const tableSelect = `
	SELECT t.id, t.table_number, t.status, t.section_id, s.name, t.created_at, t.updated_at
	FROM ` + "`tables`" + ` t
	JOIN sections s ON s.id = t.section_id`

// TableUpdate carries the fields of a table that may change. Nil fields are kept.
type TableUpdate struct {
	Status    *string `json:"status"`
	SectionID *int64  `json:"section_id"`
}

// Tables reads and writes dine-in tables.
type Tables struct {
	q Querier
}

// NewTables binds the table repository to a datastore handle.
func NewTables(q Querier) *Tables {
	return &Tables{q: q}
}

// Create inserts a table. The table number must be unique and the section must exist.
func (r *Tables) Create(ctx context.Context, t *model.Table) error {
	t.TableNumber = strings.TrimSpace(t.TableNumber)
	if t.TableNumber == "" || t.SectionID <= 0 {
		return apperrors.InvalidArgument("table number and section are required")
	}
	if t.Status == "" {
		t.Status = model.TableStatusEmpty
	}

	section, err := NewSections(r.q).Get(ctx, t.SectionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorCodeNotFound) {
			return apperrors.ConstraintViolation("invalid section", nil)
		}
		return err
	}

	var existing int64
	err = r.q.QueryRowContext(ctx,
		"SELECT id FROM `tables` WHERE table_number = ?", t.TableNumber).Scan(&existing)
	if err == nil {
		return apperrors.ConstraintViolation("table number already exists", nil)
	}
	if !isNoRows(err) {
		return classify("tables.create", "table", err)
	}

	res, err := r.q.ExecContext(ctx,
		"INSERT INTO `tables` (table_number, status, section_id) VALUES (?, ?, ?)",
		t.TableNumber, t.Status, t.SectionID)
	if err != nil {
		return classify("tables.create", "table", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return classify("tables.create", "table", err)
	}

	now := time.Now().UTC()
	t.ID = id
	t.Section = section.Name
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// List returns every table with its section name.
func (r *Tables) List(ctx context.Context) ([]model.Table, error) {
	rows, err := r.q.QueryContext(ctx, tableSelect+` ORDER BY s.name ASC, t.table_number ASC`)
	if err != nil {
		return nil, classify("tables.list", "table", err)
	}
	defer rows.Close()

	tables := make([]model.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, classify("tables.list", "table", err)
		}
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("tables.list", "table", err)
	}
	return tables, nil
}

// Get returns a table by id.
func (r *Tables) Get(ctx context.Context, id int64) (*model.Table, error) {
	t, err := scanTable(r.q.QueryRowContext(ctx, tableSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return nil, classify("tables.get", "table", err)
	}
	return t, nil
}

// Update changes the status and/or section of a table and returns the result.
func (r *Tables) Update(ctx context.Context, id int64, u TableUpdate) (*model.Table, error) {
	if u.Status == nil && u.SectionID == nil {
		return nil, apperrors.InvalidArgument("status or section is required")
	}
	if u.Status != nil && strings.TrimSpace(*u.Status) == "" {
		return nil, apperrors.InvalidArgument("status must not be empty")
	}
	if u.SectionID != nil {
		if _, err := NewSections(r.q).Get(ctx, *u.SectionID); err != nil {
			if apperrors.Is(err, apperrors.ErrorCodeNotFound) {
				return nil, apperrors.ConstraintViolation("invalid section", nil)
			}
			return nil, err
		}
	}

	if _, err := r.q.ExecContext(ctx,
		"UPDATE `tables` SET status = COALESCE(?, status), section_id = COALESCE(?, section_id) WHERE id = ?",
		u.Status, u.SectionID, id); err != nil {
		return nil, classify("tables.update", "table", err)
	}
	return r.Get(ctx, id)
}

// Delete removes a table and returns it as it was.
func (r *Tables) Delete(ctx context.Context, id int64) (*model.Table, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := r.q.ExecContext(ctx, "DELETE FROM `tables` WHERE id = ?", id)
	if err != nil {
		return nil, classify("tables.delete", "table", err)
	}
	if err := expectAffected("tables.delete", "table", res); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTable(s scanner) (*model.Table, error) {
	var t model.Table
	if err := s.Scan(&t.ID, &t.TableNumber, &t.Status, &t.SectionID, &t.Section, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
