// Package store persists conversation sessions and customers. It is the
// only shared mutable resource the conversation core depends on; all
// mutation goes through the atomic UpdateByID operation.
package store

import (
	"context"
	"errors"

	"orderbyvoice/internal/models"
)

// ErrNotFound is returned when no session matches the lookup.
var ErrNotFound = errors.New("session not found")

// ErrTerminal is returned when an update targets a session already in a
// terminal status. The update is rejected whole; nothing is written.
var ErrTerminal = errors.New("session is terminal")

// SessionUpdate carries the fields of one transition. Nil pointers leave
// the stored value untouched. Implementations apply the whole update and
// the status change as a single atomic unit.
type SessionUpdate struct {
	Phone   *string
	Name    *string
	Address *string
	Items   *[]models.OrderLineItem
	Status  *models.Status
}

// SessionStore is the persistence contract of the conversation core.
type SessionStore interface {
	// GetByID returns the session, terminal or not. ErrNotFound when
	// the id is unknown.
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// GetLatestActiveByPhone returns the most recently updated
	// non-terminal session for the phone, or ErrNotFound.
	GetLatestActiveByPhone(ctx context.Context, phone string) (*models.Session, error)

	// Create persists a new session.
	Create(ctx context.Context, session *models.Session) error

	// UpdateByID applies the update atomically, guarded on the session
	// not being terminal. ErrTerminal when the guard fails,
	// ErrNotFound when the id is unknown.
	UpdateByID(ctx context.Context, id string, update SessionUpdate) error
}

// CustomerStore upserts customers keyed by phone. Upserting the same
// phone twice never duplicates the customer.
type CustomerStore interface {
	Upsert(ctx context.Context, customer *models.Customer) error
}
