package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/repository"
)

type orderRequest struct {
	CustomerName  string            `json:"customer_name"`
	Phone         string            `json:"phone"`
	TableNumber   string            `json:"table_number"`
	Items         []model.OrderItem `json:"items"`
	TotalAmount   float64           `json:"total_amount"`
	PaymentMethod string            `json:"payment_method"`
}

func (req *orderRequest) order() *model.Order {
	return &model.Order{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Phone:         strings.TrimSpace(req.Phone),
		TableNumber:   strings.TrimSpace(req.TableNumber),
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Status:        model.OrderStatusPending,
	}
}

type orderCreatedResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"orderId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type itemsRequest struct {
	Items       []model.OrderItem `json:"items"`
	TotalAmount float64           `json:"total_amount"`
}

// ListOrders handles GET /api/orders and GET /api/tableorder.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(ctx context.Context, dh *datastore.Handle) (any, error) {
		return repository.NewOrders(dh).ListPending(ctx)
	})
}

// CreateOrder handles POST /api/orders. Walk-in orders have no table.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req.TableNumber = ""

	h.createOrder(w, r, req.order())
}

// CreateCustomerOrder handles POST /api/customer/orders. A customer ordering
// from a table QR code passes the table number.
func (h *Handlers) CreateCustomerOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.createOrder(w, r, req.order())
}

// CreateTableOrder handles POST /api/tableorder.
func (h *Handlers) CreateTableOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	o := req.order()
	if o.TableNumber == "" || len(o.Items) == 0 || o.TotalAmount <= 0 || o.PaymentMethod == "" {
		h.errorHandler.HandleError(w, r, apperrors.InvalidArgument(
			"table number, items, total amount and payment method are required"))
		return
	}

	h.createOrder(w, r, o)
}

func (h *Handlers) createOrder(w http.ResponseWriter, r *http.Request, o *model.Order) {
	h.write(w, r, http.StatusCreated, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		if err := repository.NewOrders(dh).Create(ctx, o); err != nil {
			return nil, broadcast.Event{}, err
		}
		msg := "Order added successfully"
		if o.IsTableOrder() {
			msg = "Table order added successfully"
		}
		return orderCreatedResponse{Message: msg, OrderID: o.ID}, broadcast.OrderCreated(tenantID, o), nil
	})
}

// UpdateOrderStatus handles PUT /api/orders/{id} and PUT /api/tableorder/{id}.
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusOK, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		o, err := repository.NewOrders(dh).UpdateStatus(ctx, id, strings.TrimSpace(req.Status))
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return messageResponse{Message: "Order updated successfully"}, broadcast.OrderUpdated(tenantID, o), nil
	})
}

// UpdateOrderItems handles PUT /api/orders/{id}/items and PUT /api/tableorder/update/{id}.
func (h *Handlers) UpdateOrderItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	var req itemsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusOK, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		o, err := repository.NewOrders(dh).UpdateItems(ctx, id, req.Items, req.TotalAmount)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return messageResponse{Message: "Order updated successfully"}, broadcast.OrderUpdated(tenantID, o), nil
	})
}

// DeleteOrder handles DELETE /api/orders/{id} and DELETE /api/tableorder/{id}.
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.write(w, r, http.StatusNoContent, func(ctx context.Context, tenantID int64, dh *datastore.Handle) (any, broadcast.Event, error) {
		o, err := repository.NewOrders(dh).Delete(ctx, id)
		if err != nil {
			return nil, broadcast.Event{}, err
		}
		return nil, broadcast.OrderDeleted(tenantID, o), nil
	})
}
