package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFormat(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "walk-in order deleted",
			event: OrderDeleted(1, &model.Order{ID: 7}),
			want:  `{"type":"delete_order","id":7,"table_number":""}`,
		},
		{
			name:  "table order deleted",
			event: OrderDeleted(1, &model.Order{ID: 7, TableNumber: "T4"}),
			want:  `{"type":"delete_table_order","id":7,"table_number":"T4"}`,
		},
		{
			name:  "table deleted carries section name",
			event: TableDeleted(1, &model.Table{ID: 3, TableNumber: "12", Section: "Patio"}),
			want:  `{"type":"delete_table","id":3,"table_number":"12","section":"Patio"}`,
		},
		{
			name:  "section deleted",
			event: SectionDeleted(1, 5),
			want:  `{"type":"delete_section","id":5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestOrderEventKinds(t *testing.T) {
	walkIn := &model.Order{ID: 1}
	table := &model.Order{ID: 2, TableNumber: "9"}

	assert.Equal(t, KindNewOrder, OrderCreated(1, walkIn).Kind)
	assert.Equal(t, KindNewTableOrder, OrderCreated(1, table).Kind)
	assert.Equal(t, KindUpdateOrder, OrderUpdated(1, walkIn).Kind)
	assert.Equal(t, KindUpdateTableOrder, OrderUpdated(1, table).Kind)
}

func TestNewEventCopiesFields(t *testing.T) {
	fields := map[string]any{"id": 1}
	e := NewEvent(3, KindDeleteEmployee, fields)
	fields["id"] = 2

	assert.Equal(t, 1, e.Fields["id"])
	assert.Equal(t, int64(3), e.TenantID)
}
