package models

import (
	"sort"
	"time"
)

// Status enumerates the conversation states of an order session. The
// string values are the persisted statuses and match what the dialog
// flow expects to find in the store.
type Status string

const (
	StatusStarted              Status = "iniciado"
	StatusAwaitingAddress      Status = "aguardando_endereco"
	StatusInProgress           Status = "em_progresso"
	StatusAwaitingConfirmation Status = "aguardando_confirmacao"
	StatusFinalized            Status = "finalizado"
	StatusCancelled            Status = "cancelado"
)

// IsTerminal reports whether no further mutation is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusFinalized || s == StatusCancelled
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusAwaitingAddress, StatusInProgress,
		StatusAwaitingConfirmation, StatusFinalized, StatusCancelled:
		return true
	}
	return false
}

// OrderLineItem is one ordered product with its quantity, the unit price
// snapshotted when the item was created, and the set of ingredients the
// customer asked to leave out.
type OrderLineItem struct {
	ProductID          string   `json:"produto_id"`
	Name               string   `json:"nome"`
	Quantity           int      `json:"quantidade"`
	UnitPrice          float64  `json:"preco_unitario"`
	RemovedIngredients []string `json:"ingredientes_removidos"`
}

// Subtotal is quantity times the snapshot price.
func (i *OrderLineItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// MergeRemoved unions the given ingredients into the removed set,
// keeping it deduplicated and sorted for stable output.
func (i *OrderLineItem) MergeRemoved(ingredients []string) {
	seen := make(map[string]bool, len(i.RemovedIngredients)+len(ingredients))
	for _, r := range i.RemovedIngredients {
		seen[r] = true
	}
	for _, r := range ingredients {
		if !seen[r] {
			i.RemovedIngredients = append(i.RemovedIngredients, r)
			seen[r] = true
		}
	}
	sort.Strings(i.RemovedIngredients)
}

// Session is the persisted state of one customer's order conversation.
// Fields are filled in turn by turn as extraction succeeds; once the
// status is terminal the session must never be mutated again.
type Session struct {
	ID        string          `json:"id" db:"id"`
	ChatID    string          `json:"chat_id,omitempty" db:"chat_id"`
	Phone     string          `json:"cliente_telefone" db:"cliente_telefone"`
	Name      string          `json:"cliente_nome" db:"cliente_nome"`
	Address   string          `json:"cliente_endereco" db:"cliente_endereco"`
	Status    Status          `json:"status" db:"status"`
	Items     []OrderLineItem `json:"itens" db:"itens"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Total computes the order total from the snapshot prices on the line
// items. Later catalog price changes never affect it.
func (s *Session) Total() float64 {
	var total float64
	for i := range s.Items {
		total += s.Items[i].Subtotal()
	}
	return total
}

// MergeItems folds new line items into the session, summing quantities
// and unioning removed ingredients when the same product appears again.
// Insertion order of first appearance is preserved.
func (s *Session) MergeItems(items []OrderLineItem) {
	for _, item := range items {
		merged := false
		for i := range s.Items {
			if s.Items[i].ProductID == item.ProductID {
				s.Items[i].Quantity += item.Quantity
				s.Items[i].MergeRemoved(item.RemovedIngredients)
				merged = true
				break
			}
		}
		if !merged {
			s.Items = append(s.Items, item)
		}
	}
}
