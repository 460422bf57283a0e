// Package catalog supplies the read-mostly product catalog and synonym
// map the parser matches against, with a process-wide cache and explicit
// invalidation.
package catalog

import (
	"context"
	"sort"
	"strings"

	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/models"
)

// Provider loads catalog entries from the backing source.
type Provider interface {
	Products(ctx context.Context) ([]models.Product, error)
}

// SynonymProvider loads raw alias rows. The snapshot build resolves
// conflicts deterministically.
type SynonymProvider interface {
	Synonyms(ctx context.Context) ([]Synonym, error)
}

// Synonym is one alias row for a product.
type Synonym struct {
	Alias     string `json:"sinonimo" db:"sinonimo"`
	ProductID string `json:"produto_id" db:"produto_id"`
}

// Snapshot is an immutable view of the catalog and its alias index,
// safe for concurrent reads.
type Snapshot struct {
	Products []models.Product
	Aliases  map[string]string // lowercased alias → product id
}

// BuildSnapshot assembles a Snapshot, enforcing the invariant that no
// alias maps to more than one product: when two products claim the same
// alias, the product with the smaller id wins and the other claim is
// dropped and logged.
func BuildSnapshot(products []models.Product, synonyms []Synonym, log logger.Logger) *Snapshot {
	ordered := make([]Synonym, len(synonyms))
	copy(ordered, synonyms)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ProductID != ordered[j].ProductID {
			return ordered[i].ProductID < ordered[j].ProductID
		}
		return ordered[i].Alias < ordered[j].Alias
	})

	known := make(map[string]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	aliases := make(map[string]string, len(ordered))
	for _, syn := range ordered {
		alias := strings.ToLower(strings.TrimSpace(syn.Alias))
		if alias == "" || !known[syn.ProductID] {
			continue
		}
		if owner, exists := aliases[alias]; exists {
			if owner != syn.ProductID && log != nil {
				log.Warn("duplicate alias skipped", map[string]interface{}{
					"alias":     alias,
					"keptFor":   owner,
					"duplicate": syn.ProductID,
				})
			}
			continue
		}
		aliases[alias] = syn.ProductID
	}

	snap := &Snapshot{
		Products: make([]models.Product, len(products)),
		Aliases:  aliases,
	}
	copy(snap.Products, products)
	return snap
}
