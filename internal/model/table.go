package model

import "time"

// Table status values.
const (
	TableStatusEmpty = "empty"
)

// Section groups tables on the floor plan.
type Section struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Table is a dine-in table. Section carries the section name for display.
type Table struct {
	ID          int64     `json:"id"`
	TableNumber string    `json:"table_number"`
	Status      string    `json:"status"`
	SectionID   int64     `json:"section_id"`
	Section     string    `json:"section"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
