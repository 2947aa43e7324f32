package handler

import (
	"context"
	"net/http"

	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/repository"
)

type priceRequest struct {
	Price *float64 `json:"price"`
}

type menuItemCreatedResponse struct {
	Message string `json:"message"`
	ItemID  int64  `json:"itemId"`
}

// ListMenu handles GET /api/menu and GET /api/customer/menu.
func (h *Handlers) ListMenu(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewMenu(dh).List(ctx)
	})
}

// ListCategories handles GET /api/categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewMenu(dh).Categories(ctx)
	})
}

// CreateMenuItem handles POST /api/menu.
func (h *Handlers) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var item model.MenuItem
	if err := decodeJSON(r, &item); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	item.ID = 0

	h.write(w, r, http.StatusCreated, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		if err := repository.NewMenu(dh).Create(ctx, &item); err != nil {
			return nil, broadcast.Event{}, err
		}
		return menuItemCreatedResponse{Message: "Menu item added successfully", ItemID: item.ID},
			broadcast.MenuItemCreated(tenantID, &item), nil
	})
}

// UpdateMenuItemPrice handles PUT /api/menu/{id}.
func (h *Handlers) UpdateMenuItemPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Price == nil {
		h.errorHandler.WriteValidationError(w, "price is required", r.Header.Get("X-Request-ID"))
		return
	}

	h.write(w, r, http.StatusOK, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		item, err := repository.NewMenu(dh).UpdatePrice(ctx, id, *req.Price)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return messageResponse{Message: "Menu item updated successfully"}, broadcast.MenuItemUpdated(tenantID, item), nil
	})
}

// DeleteMenuItem handles DELETE /api/menu/{id}.
func (h *Handlers) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusNoContent, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		if err := repository.NewMenu(dh).Delete(ctx, id); err != nil {
			return nil, broadcast.Event{}, err
		}
		return nil, broadcast.MenuItemDeleted(tenantID, id), nil
	})
}

// GetSettings handles GET /api/settings. A restaurant without a saved
// profile gets the default one.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewSettings(dh).Get(ctx)
	})
}

// UpdateSettings handles PUT /api/settings.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req model.Settings
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusOK, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		s, err := repository.NewSettings(dh).Update(ctx, &req)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return messageResponse{Message: "Settings updated successfully"}, broadcast.SettingsUpdated(tenantID, s), nil
	})
}

// ListEmployees handles GET /api/employees.
func (h *Handlers) ListEmployees(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewEmployees(dh).List(ctx)
	})
}

// DeleteEmployee handles DELETE /api/employees/{id}.
func (h *Handlers) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusNoContent, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		if err := repository.NewEmployees(dh).Delete(ctx, id); err != nil {
			return nil, broadcast.Event{}, err
		}
		return nil, broadcast.EmployeeDeleted(tenantID, id), nil
	})
}

// SalesSummary handles GET /api/sales.
func (h *Handlers) SalesSummary(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewSales(dh).Summary(ctx)
	})
}

// TopProducts handles GET /api/sales/top-products.
func (h *Handlers) TopProducts(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewSales(dh).TopProducts(ctx, repository.DefaultTopProducts)
	})
}
