package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

const orderColumns = `id, customer_name, phone, table_number, items, total_amount, payment_method, status, created_on`

// Orders reads and writes orders. Deleted orders are kept with is_deleted
// set so completed sales history stays intact.
type Orders struct {
	q Querier
}

// NewOrders binds the order repository to a datastore handle.
func NewOrders(q Querier) *Orders {
	return &Orders{q: q}
}

// Create inserts a pending order and fills in its id.
func (r *Orders) Create(ctx context.Context, o *model.Order) error {
	if len(o.Items) == 0 {
		return apperrors.InvalidArgument("order must contain at least one item")
	}
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return apperrors.InvalidArgument("invalid order items")
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (customer_name, phone, table_number, items, total_amount, payment_method, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(o.CustomerName),
		nullString(o.Phone),
		nullString(o.TableNumber),
		string(items),
		o.TotalAmount,
		nullString(o.PaymentMethod),
		o.Status,
	)
	if err != nil {
		return classify("orders.create", "order", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return classify("orders.create", "order", err)
	}
	o.ID = id
	o.CreatedOn = time.Now().UTC()
	return nil
}

// ListPending returns open orders, newest first.
func (r *Orders) ListPending(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, "orders.list_pending", model.OrderStatusPending, "DESC")
}

// ListCompleted returns completed orders, oldest first.
func (r *Orders) ListCompleted(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, "orders.list_completed", model.OrderStatusCompleted, "ASC")
}

func (r *Orders) list(ctx context.Context, op, status, direction string) ([]model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status = ? AND is_deleted = 0 ORDER BY created_on %s, id %s`,
		orderColumns, direction, direction)

	rows, err := r.q.QueryContext(ctx, query, status)
	if err != nil {
		return nil, classify(op, "order", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(op, "order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, "order", err)
	}
	return orders, nil
}

// Get returns a live order by id.
func (r *Orders) Get(ctx context.Context, id int64) (*model.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND is_deleted = 0`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, classify("orders.get", "order", err)
	}
	return o, nil
}

// reload reads an order just written by an update. Soft-deleted rows are
// included: a delete landing between the update and this read must not turn
// a committed update into a not-found reply.
func (r *Orders) reload(ctx context.Context, op string, id int64) (*model.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, classify(op, "order", err)
	}
	return o, nil
}

// UpdateStatus sets the status of an order and returns the updated order.
func (r *Orders) UpdateStatus(ctx context.Context, id int64, status string) (*model.Order, error) {
	if status == "" {
		return nil, apperrors.InvalidArgument("status is required")
	}

	// Connections report matched rows, so zero means no live order.
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND is_deleted = 0`, status, id)
	if err != nil {
		return nil, classify("orders.update_status", "order", err)
	}
	if err := expectAffected("orders.update_status", "order", res); err != nil {
		return nil, err
	}
	return r.reload(ctx, "orders.update_status", id)
}

// UpdateItems replaces the items and total of an order.
func (r *Orders) UpdateItems(ctx context.Context, id int64, items []model.OrderItem, total float64) (*model.Order, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidArgument("order must contain at least one item")
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, apperrors.InvalidArgument("invalid order items")
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET items = ?, total_amount = ? WHERE id = ? AND is_deleted = 0`,
		string(encoded), total, id)
	if err != nil {
		return nil, classify("orders.update_items", "order", err)
	}
	if err := expectAffected("orders.update_items", "order", res); err != nil {
		return nil, err
	}
	return r.reload(ctx, "orders.update_items", id)
}

// Delete marks an order deleted and returns it as it was.
func (r *Orders) Delete(ctx context.Context, id int64) (*model.Order, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET is_deleted = 1 WHERE id = ? AND is_deleted = 0`, id)
	if err != nil {
		return nil, classify("orders.delete", "order", err)
	}
	if err := expectAffected("orders.delete", "order", res); err != nil {
		return nil, err
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*model.Order, error) {
	var (
		o                                       model.Order
		customer, phone, tableNumber, payMethod sql.NullString
		items                                   []byte
	)
	if err := s.Scan(&o.ID, &customer, &phone, &tableNumber, &items, &o.TotalAmount, &payMethod, &o.Status, &o.CreatedOn); err != nil {
		return nil, err
	}
	o.CustomerName = customer.String
	o.Phone = phone.String
	o.TableNumber = tableNumber.String
	o.PaymentMethod = payMethod.String

	o.Items = make([]model.OrderItem, 0)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %d: %w", o.ID, err)
		}
	}
	return &o, nil
}
