package repository

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

const settingsColumns = `id, restaurantName, address, phone, email, operatingHours, upiId, isOpen`

// Settings reads and writes the single restaurant profile row.
type Settings struct {
	q Querier
}

// NewSettings binds the settings repository to a datastore handle.
func NewSettings(q Querier) *Settings {
	return &Settings{q: q}
}

// Get returns the restaurant profile, creating the default one on first use.
func (r *Settings) Get(ctx context.Context) (*model.Settings, error) {
	s, err := scanSettings(r.q.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM settings ORDER BY id ASC LIMIT 1`))
	if err == nil {
		return s, nil
	}
	if !isNoRows(err) {
		return nil, classify("settings.get", "settings", err)
	}

	defaults := model.DefaultSettings()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO settings (restaurantName, address, phone, email, operatingHours, upiId, isOpen)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		defaults.RestaurantName, defaults.Address, defaults.Phone, defaults.Email,
		defaults.OperatingHours, defaults.UPIID, defaults.IsOpen)
	if err != nil {
		return nil, classify("settings.create_default", "settings", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("settings.create_default", "settings", err)
	}
	defaults.ID = id
	return &defaults, nil
}

// Update overwrites the restaurant profile and returns it.
func (r *Settings) Update(ctx context.Context, s *model.Settings) (*model.Settings, error) {
	s.RestaurantName = strings.TrimSpace(s.RestaurantName)
	if s.RestaurantName == "" {
		return nil, apperrors.InvalidArgument("restaurant name is required")
	}

	current, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := r.q.ExecContext(ctx, `
		UPDATE settings
		SET restaurantName = ?, address = ?, phone = ?, email = ?, operatingHours = ?, upiId = ?, isOpen = ?
		WHERE id = ?`,
		s.RestaurantName, s.Address, s.Phone, s.Email, s.OperatingHours, s.UPIID, s.IsOpen,
		current.ID); err != nil {
		return nil, classify("settings.update", "settings", err)
	}

	updated := *s
	updated.ID = current.ID
	return &updated, nil
}

func scanSettings(s scanner) (*model.Settings, error) {
	var (
		out                               model.Settings
		address, phone, email, hours, upi sql.NullString
	)
	if err := s.Scan(&out.ID, &out.RestaurantName, &address, &phone, &email, &hours, &upi, &out.IsOpen); err != nil {
		return nil, err
	}
	out.Address = address.String
	out.Phone = phone.String
	out.Email = email.String
	out.OperatingHours = hours.String
	out.UPIID = upi.String
	return &out, nil
}
