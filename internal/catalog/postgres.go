package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"orderbyvoice/internal/models"
)

// PostgresCatalog loads products, ingredients and synonyms from the
// inventory tables. It implements Provider and SynonymProvider.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const productsQuery = `
SELECT p.id, p.nome, p.categoria, p.preco,
       COALESCE(i.ingrediente, ''), COALESCE(i.removivel, false)
FROM products p
LEFT JOIN ingredients i ON i.produto_id = p.id
ORDER BY p.id, i.id`

// Products loads the catalog with each product's ingredient list and
// removable subset.
func (c *PostgresCatalog) Products(ctx context.Context) ([]models.Product, error) {
	rows, err := c.db.QueryContext(ctx, productsQuery)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	index := make(map[string]int)

	for rows.Next() {
		var (
			id, nome, categoria, ingrediente string
			preco                            float64
			removivel                        bool
		)
		if err := rows.Scan(&id, &nome, &categoria, &preco, &ingrediente, &removivel); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}

		pos, ok := index[id]
		if !ok {
			products = append(products, models.Product{
				ID:       id,
				Name:     nome,
				Category: categoria,
				Price:    preco,
			})
			pos = len(products) - 1
			index[id] = pos
		}
		if ingrediente != "" {
			products[pos].Ingredients = append(products[pos].Ingredients, ingrediente)
			if removivel {
				products[pos].Removable = append(products[pos].Removable, ingrediente)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

const synonymsQuery = `SELECT sinonimo, produto_id FROM synonyms ORDER BY produto_id, sinonimo`

// Synonyms loads the raw alias rows.
func (c *PostgresCatalog) Synonyms(ctx context.Context) ([]Synonym, error) {
	rows, err := c.db.QueryContext(ctx, synonymsQuery)
	if err != nil {
		return nil, fmt.Errorf("query synonyms: %w", err)
	}
	defer rows.Close()

	var synonyms []Synonym
	for rows.Next() {
		var s Synonym
		if err := rows.Scan(&s.Alias, &s.ProductID); err != nil {
			return nil, fmt.Errorf("scan synonym row: %w", err)
		}
		synonyms = append(synonyms, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synonym rows: %w", err)
	}
	return synonyms, nil
}
