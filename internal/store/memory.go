package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"orderbyvoice/internal/models"
)

// MemorySessionStore keeps sessions in a map behind a mutex. Used by the
// demo driver and by tests that do not need a database.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.Session)}
}

func (s *MemorySessionStore) GetByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemorySessionStore) GetLatestActiveByPhone(_ context.Context, phone string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*models.Session
	for _, sess := range s.sessions {
		if sess.Phone == phone && !sess.Status.IsTerminal() {
			active = append(active, sess)
		}
	}
	if len(active) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	return cloneSession(active[0]), nil
}

func (s *MemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) UpdateByID(_ context.Context, id string, update SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.IsTerminal() {
		return ErrTerminal
	}
	if update.Phone != nil {
		sess.Phone = *update.Phone
	}
	if update.Name != nil {
		sess.Name = *update.Name
	}
	if update.Address != nil {
		sess.Address = *update.Address
	}
	if update.Items != nil {
		sess.Items = cloneItems(*update.Items)
	}
	if update.Status != nil {
		sess.Status = *update.Status
	}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneSession(sess *models.Session) *models.Session {
	out := *sess
	out.Items = cloneItems(sess.Items)
	return &out
}

func cloneItems(items []models.OrderLineItem) []models.OrderLineItem {
	if items == nil {
		return nil
	}
	out := make([]models.OrderLineItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.RemovedIngredients != nil {
			out[i].RemovedIngredients = append([]string(nil), it.RemovedIngredients...)
		}
	}
	return out
}

// MemoryCustomerStore is the in-memory CustomerStore counterpart.
type MemoryCustomerStore struct {
	mu        sync.Mutex
	customers map[string]*models.Customer
}

func NewMemoryCustomerStore() *MemoryCustomerStore {
	return &MemoryCustomerStore{customers: make(map[string]*models.Customer)}
}

func (s *MemoryCustomerStore) Upsert(_ context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *customer
	s.customers[customer.Phone] = &c
	return nil
}

// Get is a test helper for inspecting upserted customers.
func (s *MemoryCustomerStore) Get(phone string) (*models.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[phone]
	if !ok {
		return nil, false
	}
	out := *c
	return &out, true
}
