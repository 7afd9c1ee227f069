// Package shipping simulates a carrier integration: booking a shipment for
// every item of an order and applying the carrier's status callbacks.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/notify"
	"github.com/jcmexdev/storefront-fulfillment/internal/retry"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
	"github.com/jcmexdev/storefront-fulfillment/internal/workflow"
	"github.com/jcmexdev/storefront-fulfillment/internal/workflow/workflowlog"
)

// Repository is the slice of the store the shipping flow needs.
type Repository interface {
	store.Orders
	store.OrderItems
	store.Shipments
	store.Buyers
	store.Payments
}

type Shipment struct {
	TrackingNumber string
	Created        []domain.ShippingInfo
}

type Service struct {
	repo    Repository
	carrier Carrier
	notes   notify.Queue
	log     workflowlog.Repository
	policy  retry.Policy
	now     func() time.Time
}

type Option func(*Service)

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithWorkflowLog(l workflowlog.Repository) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, carrier Carrier, notes notify.Queue, opts ...Option) *Service {
	policy := retry.Default()
	policy.Permanent = domain.IsPermanent

	s := &Service{
		repo:    repo,
		carrier: carrier,
		notes:   notes,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateShipment books one label for the whole order and opens a shipping
// record per item. The steps run as a workflow: when one fails, the ones
// already done are undone so the order is left as it was found.
func (s *Service) CreateShipment(ctx context.Context, orderID, area string) (*Shipment, error) {
	if orderID == "" {
		return nil, fmt.Errorf("shipping: missing orderId: %w", domain.ErrValidation)
	}

	var items []domain.OrderItem
	err := s.do(ctx, "list order items", func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListItemsByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("shipping: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("shipping: order items of %s: %w", orderID, domain.ErrNotFound)
	}

	var (
		label   Label
		created []domain.ShippingInfo
	)
	previous := make(map[string]domain.ItemStatus, len(items))
	restore := func(ctx context.Context) error {
		var errs []error
		for id, st := range previous {
			errs = append(errs, s.repo.SetItemStatus(ctx, id, st))
		}
		return errors.Join(errs...)
	}

	steps := []workflow.Step{
		workflow.FuncStep{
			StepName: "book_label",
			Do: func(ctx context.Context) error {
				return s.do(ctx, "book label", func(ctx context.Context) error {
					var err error
					label, err = s.carrier.BookLabel(ctx, LabelRequest{OrderID: orderID, Area: area, Parcels: len(items)})
					return err
				})
			},
			Undo: func(ctx context.Context) error {
				return s.carrier.CancelLabel(ctx, label.TrackingNumber)
			},
		},
		workflow.FuncStep{
			StepName: "create_shipping_infos",
			Do: func(ctx context.Context) error {
				now := s.now().UTC()
				infos := make([]domain.ShippingInfo, 0, len(items))
				for _, it := range items {
					infos = append(infos, domain.ShippingInfo{
						ID:             uuid.NewString(),
						OrderItemID:    it.ID,
						OrderID:        orderID,
						Carrier:        label.Carrier,
						TrackingNumber: label.TrackingNumber,
						Area:           area,
						Status:         domain.ShippingInTransit,
						CreatedAt:      now,
						UpdatedAt:      now,
					})
				}
				if err := s.do(ctx, "create shipping infos", func(ctx context.Context) error {
					return s.repo.CreateShippingInfos(ctx, infos)
				}); err != nil {
					return err
				}
				created = infos
				return nil
			},
			Undo: func(ctx context.Context) error {
				ids := make([]string, 0, len(created))
				for _, si := range created {
					ids = append(ids, si.ID)
				}
				return s.repo.DeleteShippingInfos(ctx, ids)
			},
		},
		workflow.FuncStep{
			StepName: "mark_items_shipping",
			Do: func(ctx context.Context) error {
				for _, it := range items {
					if err := s.do(ctx, "mark item shipping", func(ctx context.Context) error {
						return s.repo.SetItemStatus(ctx, it.ID, domain.ItemShipping)
					}); err != nil {
						// A failed step is not compensated by the orchestrator.
						return errors.Join(err, restore(ctx))
					}
					previous[it.ID] = it.Status
				}
				return nil
			},
			Undo: restore,
		},
		workflow.FuncStep{
			StepName: "sync_order_status",
			Do: func(ctx context.Context) error {
				return s.syncOrderStatus(ctx, orderID)
			},
		},
	}

	if err := workflow.NewOrchestrator(orderID, steps, s.log).Start(ctx); err != nil {
		return nil, fmt.Errorf("shipping: create shipment for %s: %w", orderID, err)
	}

	slog.InfoContext(ctx, "shipment created", "order_id", orderID, "tracking_number", label.TrackingNumber, "items", len(created))
	return &Shipment{TrackingNumber: label.TrackingNumber, Created: created}, nil
}

// UpdateShipmentStatus applies a carrier callback to every record sharing the
// tracking number, maps it onto the order items and re-derives the status of
// each affected order.
func (s *Service) UpdateShipmentStatus(ctx context.Context, trackingNumber, status string) error {
	if trackingNumber == "" || status == "" {
		return fmt.Errorf("shipping: missing trackingNumber or status: %w", domain.ErrValidation)
	}
	st, err := domain.ParseShippingStatus(status)
	if err != nil {
		return fmt.Errorf("shipping: %w", err)
	}

	var infos []domain.ShippingInfo
	err = s.do(ctx, "list shipping infos", func(ctx context.Context) error {
		var err error
		infos, err = s.repo.ListShippingByTracking(ctx, trackingNumber)
		return err
	})
	if err != nil {
		return fmt.Errorf("shipping: %w", err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("shipping: tracking %s: %w", trackingNumber, domain.ErrNotFound)
	}

	var orders []string
	seen := make(map[string]bool)
	for _, si := range infos {
		orderID, err := s.applyToItem(ctx, si, st)
		if err != nil {
			return fmt.Errorf("shipping: update %s: %w", si.ID, err)
		}
		if orderID != "" && !seen[orderID] {
			seen[orderID] = true
			orders = append(orders, orderID)
		}
	}

	for _, orderID := range orders {
		if err := s.syncOrderStatus(ctx, orderID); err != nil {
			return fmt.Errorf("shipping: %w", err)
		}
	}

	slog.InfoContext(ctx, "shipment status updated", "tracking_number", trackingNumber, "status", string(st))
	return nil
}

// applyToItem updates one shipping record and its item. It returns the order
// the item belongs to, or "" when the item no longer exists.
func (s *Service) applyToItem(ctx context.Context, si domain.ShippingInfo, st domain.ShippingStatus) (string, error) {
	err := s.do(ctx, "update shipping info", func(ctx context.Context) error {
		return s.repo.UpdateShippingStatus(ctx, si.ID, st, s.now().UTC())
	})
	if err != nil {
		return "", err
	}

	var item *domain.OrderItem
	err = s.do(ctx, "load order item", func(ctx context.Context) error {
		var err error
		item, err = s.repo.GetItem(ctx, si.OrderItemID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "shipping record points at a missing item", "shipping_id", si.ID, "order_item_id", si.OrderItemID)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if next := st.ItemStatus(item.Status); next != item.Status {
		if err := s.do(ctx, "update item status", func(ctx context.Context) error {
			return s.repo.SetItemStatus(ctx, item.ID, next)
		}); err != nil {
			return "", err
		}
	}

	if st == domain.ShippingDelivered {
		s.notifyDelivered(ctx, item, si.TrackingNumber)
	}
	return item.OrderID, nil
}

func (s *Service) notifyDelivered(ctx context.Context, item *domain.OrderItem, trackingNumber string) {
	order, err := s.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		slog.WarnContext(ctx, "delivery email skipped", "order_id", item.OrderID, "error", err)
		return
	}
	buyer, err := s.repo.GetBuyer(ctx, order.BuyerID)
	if err != nil {
		slog.WarnContext(ctx, "delivery email skipped", "buyer_id", order.BuyerID, "error", err)
		return
	}
	s.notes.Enqueue(ctx, notify.OrderDelivered(buyer.Email, order.ID, item.ID, trackingNumber))
}

// syncOrderStatus re-derives the order status from all of its items. A lost
// compare-and-set re-reads and tries again.
func (s *Service) syncOrderStatus(ctx context.Context, orderID string) error {
	p := s.policy
	p.Permanent = func(err error) bool { return errors.Is(err, domain.ErrNotFound) }

	return retry.Do(ctx, p, "sync order status", func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := s.repo.ListItemsByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		statuses := make([]domain.ItemStatus, 0, len(items))
		for _, it := range items {
			statuses = append(statuses, it.Status)
		}

		target := domain.DeriveOrderStatus(order.Status, statuses)
		if target == order.Status {
			return nil
		}
		if !domain.CanTransition(order.Status, target) {
			slog.WarnContext(ctx, "derived order status not reachable", "order_id", orderID, "from", string(order.Status), "to", string(target))
			return nil
		}
		if err := s.repo.UpdateOrderStatus(ctx, orderID, order.Status, target); err != nil {
			return err
		}
		slog.InfoContext(ctx, "order status derived", "order_id", orderID, "from", string(order.Status), "to", string(target))
		if order.Status == domain.OrderPending {
			s.settleOnDelivery(ctx, orderID)
		}
		return nil
	})
}

// settleOnDelivery marks the cash on delivery payment of a resolved order as
// paid. The order status is already written, so failures are only logged.
func (s *Service) settleOnDelivery(ctx context.Context, orderID string) {
	p, err := s.repo.LatestPayment(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.WarnContext(ctx, "cash on delivery not settled", "order_id", orderID, "error", err)
		}
		return
	}
	if p.Method != domain.MethodCOD || p.Status != domain.PaymentPending {
		return
	}

	paidAt := s.now().UTC()
	p.Status = domain.PaymentPaid
	p.PaidAt = &paidAt
	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		slog.WarnContext(ctx, "cash on delivery not settled", "order_id", orderID, "payment_id", p.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "cash on delivery settled", "order_id", orderID, "payment_id", p.ID)
}

func (s *Service) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.policy, name, fn)
}
