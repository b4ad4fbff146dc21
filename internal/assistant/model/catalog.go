package model

// CatalogItem is one vehicle listing in the dealership catalog. Items are
// embedded wholesale on rebuild or individually on upsert; the vector is
// removed when the item is removed.
type CatalogItem struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	InStock     bool    `json:"in_stock"`
}

// RankedResult is one hybrid-search hit against the catalog index.
type RankedResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}
