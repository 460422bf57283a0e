package models

import "strings"

// Product is an immutable catalog entry. The conversation core treats it
// as read-only; prices on line items are snapshotted at creation time.
type Product struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"nome" db:"nome"`
	Category    string   `json:"categoria" db:"categoria"`
	Price       float64  `json:"preco" db:"preco"`
	Ingredients []string `json:"ingredientes,omitempty" db:"ingredientes"`
	Removable   []string `json:"removiveis,omitempty" db:"removiveis"`
}

// RemovableSet returns the removable ingredients as a lookup map keyed by
// lowercased name, with the canonical spelling as value. Products with no
// explicit removable subset treat the full ingredient list as removable.
func (p *Product) RemovableSet() map[string]string {
	src := p.Removable
	if len(src) == 0 {
		src = p.Ingredients
	}
	set := make(map[string]string, len(src))
	for _, ing := range src {
		set[strings.ToLower(ing)] = ing
	}
	return set
}
