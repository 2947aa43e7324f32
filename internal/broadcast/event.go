package broadcast

import (
	"encoding/json"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

// Kind identifies what changed. It is sent to dashboards as the "type" field.
type Kind string

// Event kinds understood by the dashboard.
const (
	KindNewOrder         Kind = "new_order"
	KindUpdateOrder      Kind = "update_order"
	KindDeleteOrder      Kind = "delete_order"
	KindNewTableOrder    Kind = "new_table_order"
	KindUpdateTableOrder Kind = "update_table_order"
	KindDeleteTableOrder Kind = "delete_table_order"
	KindNewTable         Kind = "new_table"
	KindUpdateTable      Kind = "update_table"
	KindDeleteTable      Kind = "delete_table"
	KindNewSection       Kind = "new_section"
	KindDeleteSection    Kind = "delete_section"
	KindDeleteEmployee   Kind = "delete_employee"
	KindNewMenuItem      Kind = "new_menu_item"
	KindUpdateMenuItem   Kind = "update_menu_item"
	KindDeleteMenuItem   Kind = "delete_menu_item"
	KindUpdateSettings   Kind = "update_settings"
)

// Event describes one committed change in a restaurant's datastore. It is
// delivered only to that restaurant's subscribers.
type Event struct {
	Kind     Kind
	TenantID int64
	Fields   map[string]any
}

// NewEvent creates an event. fields is copied.
func NewEvent(tenantID int64, kind Kind, fields map[string]any) Event {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Event{Kind: kind, TenantID: tenantID, Fields: copied}
}

// MarshalJSON encodes the event as {"type": kind, ...fields}. The tenant id is
// routing information and is not sent.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = e.Kind
	return json.Marshal(out)
}

// OrderCreated reports a new order, as a table order when it has a table number.
func OrderCreated(tenantID int64, o *model.Order) Event {
	kind := KindNewOrder
	if o.IsTableOrder() {
		kind = KindNewTableOrder
	}
	return NewEvent(tenantID, kind, map[string]any{"order": o})
}

// OrderUpdated reports a status or item change of an order.
func OrderUpdated(tenantID int64, o *model.Order) Event {
	kind := KindUpdateOrder
	if o.IsTableOrder() {
		kind = KindUpdateTableOrder
	}
	return NewEvent(tenantID, kind, map[string]any{"order": o})
}

// OrderDeleted reports a removed order.
func OrderDeleted(tenantID int64, o *model.Order) Event {
	kind := KindDeleteOrder
	if o.IsTableOrder() {
		kind = KindDeleteTableOrder
	}
	return NewEvent(tenantID, kind, map[string]any{"id": o.ID, "table_number": o.TableNumber})
}

// TableCreated reports a new table with its section name.
func TableCreated(tenantID int64, t *model.Table) Event {
	return NewEvent(tenantID, KindNewTable, map[string]any{"table": t})
}

// TableUpdated reports a table status or section change.
func TableUpdated(tenantID int64, t *model.Table) Event {
	return NewEvent(tenantID, KindUpdateTable, map[string]any{"table": t})
}

// TableDeleted reports a removed table.
func TableDeleted(tenantID int64, t *model.Table) Event {
	return NewEvent(tenantID, KindDeleteTable, map[string]any{
		"id":           t.ID,
		"table_number": t.TableNumber,
		"section":      t.Section,
	})
}

// SectionCreated reports a new section.
func SectionCreated(tenantID int64, s *model.Section) Event {
	return NewEvent(tenantID, KindNewSection, map[string]any{"section": s})
}

// SectionDeleted reports a removed section.
func SectionDeleted(tenantID int64, id int64) Event {
	return NewEvent(tenantID, KindDeleteSection, map[string]any{"id": id})
}

// EmployeeDeleted reports a removed staff account.
func EmployeeDeleted(tenantID int64, id int64) Event {
	return NewEvent(tenantID, KindDeleteEmployee, map[string]any{"id": id})
}

// MenuItemCreated reports a new menu item.
func MenuItemCreated(tenantID int64, item *model.MenuItem) Event {
	return NewEvent(tenantID, KindNewMenuItem, map[string]any{"item": item})
}

// MenuItemUpdated reports a menu price change.
func MenuItemUpdated(tenantID int64, item *model.MenuItem) Event {
	return NewEvent(tenantID, KindUpdateMenuItem, map[string]any{"item": item})
}

// MenuItemDeleted reports a removed menu item.
func MenuItemDeleted(tenantID int64, id int64) Event {
	return NewEvent(tenantID, KindDeleteMenuItem, map[string]any{"id": id})
}

// SettingsUpdated reports a restaurant profile change.
func SettingsUpdated(tenantID int64, s *model.Settings) Event {
	return NewEvent(tenantID, KindUpdateSettings, map[string]any{"settings": s})
}
