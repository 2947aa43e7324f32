package handler

import (
	"context"
	"net/http"

	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/repository"
)

type sectionRequest struct {
	Name string `json:"name"`
}

type sectionCreatedResponse struct {
	Message   string `json:"message"`
	SectionID int64  `json:"sectionId"`
}

type tableRequest struct {
	TableNumber string `json:"table_number"`
	SectionID   int64  `json:"section_id"`
}

type tableCreatedResponse struct {
	Message string `json:"message"`
	TableID int64  `json:"tableId"`
}

// ListSections handles GET /api/sections.
func (h *Handlers) ListSections(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewSections(dh).List(ctx)
	})
}

// CreateSection handles POST /api/sections.
func (h *Handlers) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusCreated, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		s, err := repository.NewSections(dh).Create(ctx, req.Name)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return sectionCreatedResponse{Message: "Section added successfully", SectionID: s.ID},
			broadcast.SectionCreated(tenantID, s), nil
	})
}

// DeleteSection handles DELETE /api/sections/{id}. Sections that still hold
// tables are kept.
func (h *Handlers) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusNoContent, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		if err := repository.NewSections(dh).Delete(ctx, id); err != nil {
			return nil, broadcast.Event{}, err
		}
		return nil, broadcast.SectionDeleted(tenantID, id), nil
	})
}

// ListTables handles GET /api/tables.
func (h *Handlers) ListTables(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewTables(dh).List(ctx)
	})
}

// CreateTable handles POST /api/tables.
func (h *Handlers) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusCreated, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		t := &model.Table{TableNumber: req.TableNumber, SectionID: req.SectionID}
		if err := repository.NewTables(dh).Create(ctx, t); err != nil {
			return nil, broadcast.Event{}, err
		}
		return tableCreatedResponse{Message: "Table added successfully", TableID: t.ID},
			broadcast.TableCreated(tenantID, t), nil
	})
}

// UpdateTable handles PUT /api/tables/{id}.
func (h *Handlers) UpdateTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	var req repository.TableUpdate
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusOK, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		t, err := repository.NewTables(dh).Update(ctx, id, req)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return messageResponse{Message: "Table updated successfully"}, broadcast.TableUpdated(tenantID, t), nil
	})
}

// DeleteTable handles DELETE /api/tables/{id}.
func (h *Handlers) DeleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusNoContent, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		t, err := repository.NewTables(dh).Delete(ctx, id)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return nil, broadcast.TableDeleted(tenantID, t), nil
	})
}
