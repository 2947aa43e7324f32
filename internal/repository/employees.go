package repository

import (
	"context"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

// Employees reads and removes staff accounts.
type Employees struct {
	q Querier
}

// NewEmployees binds the employee repository to a datastore handle.
func NewEmployees(q Querier) *Employees {
	return &Employees{q: q}
}

// List returns all staff accounts.
func (r *Employees) List(ctx context.Context) ([]model.Employee, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, username, email FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, classify("employees.list", "employee", err)
	}
	defer rows.Close()

	employees := make([]model.Employee, 0)
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Username, &e.Email); err != nil {
			return nil, classify("employees.list", "employee", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("employees.list", "employee", err)
	}
	return employees, nil
}

// Delete removes a staff account.
func (r *Employees) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return classify("employees.delete", "employee", err)
	}
	return expectAffected("employees.delete", "employee", res)
}
