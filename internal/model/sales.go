package model

// SalesRow aggregates completed sales of one menu item.
type SalesRow struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// TopProduct is a SalesRow ranked by quantity sold.
type TopProduct struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Revenue    float64 `json:"revenue"`
	Popularity int     `json:"popularity"`
}
