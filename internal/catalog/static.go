package catalog

import (
	"context"
	"sync"

	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/models"
)

// StaticCatalog serves a fixed product list and alias set from memory.
// Used by tests and by the demo driver when no database is configured.
type StaticCatalog struct {
	products []models.Product
	synonyms []Synonym
}

func NewStaticCatalog(products []models.Product, synonyms []Synonym) *StaticCatalog {
	return &StaticCatalog{products: products, synonyms: synonyms}
}

func (s *StaticCatalog) Products(ctx context.Context) ([]models.Product, error) {
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *StaticCatalog) Synonyms(ctx context.Context) ([]Synonym, error) {
	out := make([]Synonym, len(s.synonyms))
	copy(out, s.synonyms)
	return out, nil
}

// Direct builds snapshots straight from the providers on every call,
// skipping redis. The snapshot is memoized so repeated calls are cheap;
// Invalidate drops it.
type Direct struct {
	provider Provider
	synonyms SynonymProvider
	log      logger.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

func NewDirect(provider Provider, synonyms SynonymProvider, log logger.Logger) *Direct {
	return &Direct{provider: provider, synonyms: synonyms, log: log}
}

func (d *Direct) Snapshot(ctx context.Context) (*Snapshot, error) {
	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	products, err := d.provider.Products(ctx)
	if err != nil {
		return nil, err
	}
	synonyms, err := d.synonyms.Synonyms(ctx)
	if err != nil {
		return nil, err
	}
	snap = BuildSnapshot(products, synonyms, d.log)

	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()
	return snap, nil
}

func (d *Direct) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	d.snap = nil
	d.mu.Unlock()
	return nil
}

// DemoCatalog returns the sample menu the project ships for local runs.
func DemoCatalog() *StaticCatalog {
	return NewStaticCatalog(
		[]models.Product{
			{
				ID:          "001",
				Name:        "Big Mac",
				Category:    "Hambúrguer",
				Price:       15.00,
				Ingredients: []string{"Hambúrguer", "Alface", "Queijo", "Molho especial", "Cebola", "Picles"},
			},
			{
				ID:       "002",
				Name:     "Coca-Cola 350ml",
				Category: "Refrigerante",
				Price:    5.00,
			},
			{
				ID:          "003",
				Name:        "Batata Frita Média",
				Category:    "Acompanhamento",
				Price:       10.00,
				Ingredients: []string{"Sal"},
			},
			{
				ID:          "004",
				Name:        "Pizza",
				Category:    "Pizza",
				Price:       25.00,
				Ingredients: []string{"Queijo", "Molho de tomate"},
			},
		},
		[]Synonym{
			{Alias: "hambúrguer", ProductID: "001"},
			{Alias: "hamburguer", ProductID: "001"},
			{Alias: "refri", ProductID: "002"},
			{Alias: "refrigerante", ProductID: "002"},
			{Alias: "coca", ProductID: "002"},
			{Alias: "batata", ProductID: "003"},
			{Alias: "batata frita", ProductID: "003"},
		},
	)
}
