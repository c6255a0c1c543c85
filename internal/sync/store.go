package sync

import (
	"sync"

	"example.com/mci/services/delivery/internal/model"
)

// Store owns the in-memory view of the dashboard data: the active and
// history delivery buckets plus the customer list. All access goes through
// the orchestrator; nothing reaches into the buckets directly.
type Store struct {
	mu        sync.RWMutex
	active    []*model.Delivery
	history   []*model.Delivery
	customers []*model.Customer
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly partitioned view
func (s *Store) Replace(active, history []*model.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
	s.history = history
}

// ReplaceCustomers swaps in a fresh customer list
func (s *Store) ReplaceCustomers(customers []*model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = customers
}

// Active returns a copy of the active bucket
func (s *Store) Active() []*model.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Delivery, len(s.active))
	copy(out, s.active)
	return out
}

// History returns a copy of the history bucket
func (s *Store) History() []*model.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Delivery, len(s.history))
	copy(out, s.history)
	return out
}

// Customers returns a copy of the customer list
func (s *Store) Customers() []*model.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Customer, len(s.customers))
	copy(out, s.customers)
	return out
}

// Upsert places the delivery in the bucket its status dictates, removing any
// prior copy from both buckets first. A record is never in both buckets and
// never in neither. New records go to the front: the view is newest first.
func (s *Store) Upsert(d *model.Delivery) {
	if d == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = removeByID(s.active, d.ID)
	s.history = removeByID(s.history, d.ID)

	if model.StatusFromString(string(d.Status)).Terminal() {
		s.history = append([]*model.Delivery{d}, s.history...)
	} else {
		s.active = append([]*model.Delivery{d}, s.active...)
	}
}

// Remove drops the delivery from whichever bucket holds it
func (s *Store) Remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = removeByID(s.active, id)
	s.history = removeByID(s.history, id)
}

// Find returns the delivery with the given id, or nil
func (s *Store) Find(id uint) *model.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.active {
		if d.ID == id {
			return d
		}
	}
	for _, d := range s.history {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// UpsertCustomer inserts or replaces a customer record
func (s *Store) UpsertCustomer(c *model.Customer) {
	if c == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.customers {
		if existing.ID == c.ID {
			s.customers[i] = c
			return
		}
	}
	s.customers = append(s.customers, c)
}

// RemoveCustomer drops a customer record
func (s *Store) RemoveCustomer(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.customers {
		if existing.ID == id {
			s.customers = append(s.customers[:i], s.customers[i+1:]...)
			return
		}
	}
}

// Counts returns the bucket sizes
func (s *Store) Counts() (active, history int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active), len(s.history)
}

func removeByID(list []*model.Delivery, id uint) []*model.Delivery {
	for i, d := range list {
		if d.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
