package repository

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

// Menu reads and writes menu items.
type Menu struct {
	q Querier
}

// NewMenu binds the menu repository to a datastore handle.
func NewMenu(q Querier) *Menu {
	return &Menu{q: q}
}

// List returns the whole menu grouped by category.
func (r *Menu) List(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, image, price, category FROM menu ORDER BY category ASC, name ASC`)
	if err != nil {
		return nil, classify("menu.list", "menu item", err)
	}
	defer rows.Close()

	items := make([]model.MenuItem, 0)
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, classify("menu.list", "menu item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("menu.list", "menu item", err)
	}
	return items, nil
}

// Get returns a menu item by id.
func (r *Menu) Get(ctx context.Context, id int64) (*model.MenuItem, error) {
	item, err := scanMenuItem(r.q.QueryRowContext(ctx,
		`SELECT id, name, image, price, category FROM menu WHERE id = ?`, id))
	if err != nil {
		return nil, classify("menu.get", "menu item", err)
	}
	return item, nil
}

// Create inserts a menu item and fills in its id.
func (r *Menu) Create(ctx context.Context, item *model.MenuItem) error {
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	if item.Name == "" || item.Category == "" {
		return apperrors.InvalidArgument("name and category are required")
	}
	if item.Price < 0 {
		return apperrors.InvalidArgument("price must not be negative")
	}

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO menu (name, image, price, category) VALUES (?, ?, ?, ?)`,
		item.Name, nullString(item.Image), item.Price, item.Category)
	if err != nil {
		return classify("menu.create", "menu item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("menu.create", "menu item", err)
	}
	item.ID = id
	return nil
}

// UpdatePrice changes the price of a menu item and returns the item.
func (r *Menu) UpdatePrice(ctx context.Context, id int64, price float64) (*model.MenuItem, error) {
	if price < 0 {
		return nil, apperrors.InvalidArgument("price must not be negative")
	}
	if _, err := r.q.ExecContext(ctx, `UPDATE menu SET price = ? WHERE id = ?`, price, id); err != nil {
		return nil, classify("menu.update_price", "menu item", err)
	}
	return r.Get(ctx, id)
}

// Delete removes a menu item.
func (r *Menu) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM menu WHERE id = ?`, id)
	if err != nil {
		return classify("menu.delete", "menu item", err)
	}
	return expectAffected("menu.delete", "menu item", res)
}

// Categories returns the distinct menu categories.
func (r *Menu) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT DISTINCT category FROM menu ORDER BY category ASC`)
	if err != nil {
		return nil, classify("menu.categories", "category", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, classify("menu.categories", "category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("menu.categories", "category", err)
	}
	return categories, nil
}

func scanMenuItem(s scanner) (*model.MenuItem, error) {
	var (
		item  model.MenuItem
		image sql.NullString
	)
	if err := s.Scan(&item.ID, &item.Name, &image, &item.Price, &item.Category); err != nil {
		return nil, err
	}
	item.Image = image.String
	return &item, nil
}
