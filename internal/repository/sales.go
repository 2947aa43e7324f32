package repository

import (
	"context"
	"sort"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

// DefaultTopProducts is the number of products ranked by TopProducts.
const DefaultTopProducts = 10

// Sales aggregates completed orders.
type Sales struct {
	orders *Orders
}

// NewSales binds the sales reports to a datastore handle.
func NewSales(q Querier) *Sales {
	return &Sales{orders: NewOrders(q)}
}

// Summary returns per-item quantity and revenue, highest revenue first.
func (r *Sales) Summary(ctx context.Context) ([]model.SalesRow, error) {
	orders, err := r.orders.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	rows := aggregateSales(orders)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

// TopProducts returns the best selling items by quantity.
func (r *Sales) TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	orders, err := r.orders.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	return rankProducts(aggregateSales(orders), limit), nil
}

func aggregateSales(orders []model.Order) []model.SalesRow {
	index := make(map[string]int)
	rows := make([]model.SalesRow, 0)
	for _, o := range orders {
		for _, item := range o.Items {
			i, ok := index[item.Name]
			if !ok {
				i = len(rows)
				index[item.Name] = i
				rows = append(rows, model.SalesRow{Name: item.Name})
			}
			rows[i].Quantity += item.Quantity
			rows[i].Revenue += item.Price * float64(item.Quantity)
		}
	}
	return rows
}

func rankProducts(rows []model.SalesRow, limit int) []model.TopProduct {
	if limit <= 0 {
		limit = DefaultTopProducts
	}
	sorted := append([]model.SalesRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Quantity != sorted[j].Quantity {
			return sorted[i].Quantity > sorted[j].Quantity
		}
		return sorted[i].Name < sorted[j].Name
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	top := make([]model.TopProduct, len(sorted))
	for i, row := range sorted {
		top[i] = model.TopProduct{
			Rank:       i + 1,
			Name:       row.Name,
			Quantity:   row.Quantity,
			Revenue:    row.Revenue,
			Popularity: min(100, row.Quantity*10),
		}
	}
	return top
}
