// Package memory is an in-process implementation of store.Store intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	items     map[string]domain.OrderItem
	payments  map[string]domain.Payment
	shipments map[string]domain.ShippingInfo
	buyers    map[string]domain.Buyer
}

func New() *Store {
	return &Store{
		orders:    make(map[string]domain.Order),
		items:     make(map[string]domain.OrderItem),
		payments:  make(map[string]domain.Payment),
		shipments: make(map[string]domain.ShippingInfo),
		buyers:    make(map[string]domain.Buyer),
	}
}

// PutBuyer registers a buyer; the service itself never writes users.
func (s *Store) PutBuyer(b domain.Buyer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[b.ID] = b
}

func (s *Store) CreateOrder(_ context.Context, order *domain.Order, items []domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("memory: order %s already exists", order.ID)
	}
	s.orders[order.ID] = *order
	for _, it := range items {
		s.items[it.ID] = it
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	return &o, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("memory: order %s is %s, expected %s: %w", id, o.Status, from, domain.ErrInvalidState)
	}
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("memory: order %s cannot move %s -> %s: %w", id, from, to, domain.ErrInvalidState)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return nil
}

func (s *Store) ListOrdersCreatedBefore(_ context.Context, status domain.OrderStatus, before time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.Status == status && !o.CreatedAt.After(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListItemsByOrder(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.OrderItem
	for _, it := range s.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("memory: order item %s: %w", id, domain.ErrNotFound)
	}
	return &it, nil
}

func (s *Store) SetItemStatus(_ context.Context, id string, status domain.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("memory: order item %s: %w", id, domain.ErrNotFound)
	}
	it.Status = status
	s.items[id] = it
	return nil
}

func (s *Store) CreatePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return fmt.Errorf("memory: payment %s already exists", p.ID)
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) UpdatePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID]; !ok {
		return fmt.Errorf("memory: payment %s: %w", p.ID, domain.ErrNotFound)
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) LatestPayment(_ context.Context, orderID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Payment
	for _, p := range s.payments {
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			cp := p
			latest = &cp
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("memory: payment for order %s: %w", orderID, domain.ErrNotFound)
	}
	return latest, nil
}

func (s *Store) ListPendingPayments(_ context.Context, createdBefore time.Time) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Payment
	for _, p := range s.payments {
		if p.Status == domain.PaymentPending && !p.CreatedAt.After(createdBefore) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateShippingInfos(_ context.Context, infos []domain.ShippingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, si := range infos {
		if _, exists := s.shipments[si.ID]; exists {
			return fmt.Errorf("memory: shipping info %s already exists", si.ID)
		}
	}
	for _, si := range infos {
		s.shipments[si.ID] = si
	}
	return nil
}

func (s *Store) DeleteShippingInfos(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.shipments, id)
	}
	return nil
}

func (s *Store) ListShippingByTracking(_ context.Context, trackingNumber string) ([]domain.ShippingInfo, error) {
	return s.filterShipments(func(si domain.ShippingInfo) bool { return si.TrackingNumber == trackingNumber }), nil
}

func (s *Store) ListShippingByOrder(_ context.Context, orderID string) ([]domain.ShippingInfo, error) {
	return s.filterShipments(func(si domain.ShippingInfo) bool { return si.OrderID == orderID }), nil
}

func (s *Store) UpdateShippingStatus(_ context.Context, id string, status domain.ShippingStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, ok := s.shipments[id]
	if !ok {
		return fmt.Errorf("memory: shipping info %s: %w", id, domain.ErrNotFound)
	}
	si.Status = status
	si.UpdatedAt = at
	s.shipments[id] = si
	return nil
}

func (s *Store) GetBuyer(_ context.Context, id string) (*domain.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buyers[id]
	if !ok {
		return nil, fmt.Errorf("memory: buyer %s: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (s *Store) filterShipments(keep func(domain.ShippingInfo) bool) []domain.ShippingInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ShippingInfo
	for _, si := range s.shipments {
		if keep(si) {
			out = append(out, si)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
