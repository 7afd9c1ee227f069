// Package mongostore provides a MongoDB-backed implementation of store.Store.
//
// Each entity lives in its own collection (orders, order_items, payments,
// shipping_infos, users) with string ids and snake_case fields. The layout is
// owned by this service; it is not shared with another application's schema.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/store"
)

const (
	ordersCollection    = "orders"
	itemsCollection     = "order_items"
	paymentsCollection  = "payments"
	shippingCollection  = "shipping_infos"
	usersCollection     = "users"
	defaultConnectLimit = 30 * time.Second
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client   *mongo.Client
	orders   *mongo.Collection
	items    *mongo.Collection
	payments *mongo.Collection
	shipping *mongo.Collection
	users    *mongo.Collection
}

// Open connects to MongoDB, verifies the connection with a ping and ensures
// the indexes the queries rely on.
//
//	st, err := mongostore.Open(ctx, "mongodb://localhost:27017", "storefront")
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectLimit)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		orders:   db.Collection(ordersCollection),
		items:    db.Collection(itemsCollection),
		payments: db.Collection(paymentsCollection),
		shipping: db.Collection(shippingCollection),
		users:    db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.orders:   {{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}}},
		s.items:    {{Keys: bson.D{{Key: "order_id", Value: 1}}}},
		s.payments: {{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}}}, {Keys: bson.D{{Key: "status", Value: 1}}}},
		s.shipping: {{Keys: bson.D{{Key: "tracking_number", Value: 1}}}, {Keys: bson.D{{Key: "order_id", Value: 1}}}},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongostore: create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order, items []domain.OrderItem) error {
	if _, err := s.orders.InsertOne(ctx, orderToDocument(order)); err != nil {
		return fmt.Errorf("mongostore: insert order %s: %w", order.ID, err)
	}
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(items))
	for _, it := range items {
		docs = append(docs, itemToDocument(it))
	}
	if _, err := s.items.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongostore: insert items of order %s: %w", order.ID, err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "order", id)
	}
	o, err := orderFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("mongostore: %w", err)
	}
	return &o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("mongostore: order %s cannot move %s -> %s: %w", id, from, to, domain.ErrInvalidState)
	}
	res, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update order %s: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongostore: count order %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mongostore: order %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("mongostore: order %s is no longer %s: %w", id, from, domain.ErrInvalidState)
}

func (s *Store) ListOrdersCreatedBefore(ctx context.Context, status domain.OrderStatus, before time.Time) ([]domain.Order, error) {
	cur, err := s.orders.Find(ctx,
		bson.M{"status": string(status), "created_at": bson.M{"$lte": before.UTC()}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find %s orders: %w", status, err)
	}
	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode orders: %w", err)
	}

	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := orderFromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("mongostore: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) ListItemsByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	cur, err := s.items.Find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find items of order %s: %w", orderID, err)
	}
	var docs []itemDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode items: %w", err)
	}

	out := make([]domain.OrderItem, 0, len(docs))
	for _, d := range docs {
		it, err := itemFromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("mongostore: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	var doc itemDocument
	if err := s.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "order item", id)
	}
	it, err := itemFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("mongostore: %w", err)
	}
	return &it, nil
}

func (s *Store) SetItemStatus(ctx context.Context, id string, status domain.ItemStatus) error {
	res, err := s.items.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		return fmt.Errorf("mongostore: update order item %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongostore: order item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	if _, err := s.payments.InsertOne(ctx, paymentToDocument(p)); err != nil {
		return fmt.Errorf("mongostore: insert payment %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	res, err := s.payments.ReplaceOne(ctx, bson.M{"_id": p.ID}, paymentToDocument(p))
	if err != nil {
		return fmt.Errorf("mongostore: replace payment %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongostore: payment %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) LatestPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	var doc paymentDocument
	err := s.payments.FindOne(ctx,
		bson.M{"order_id": orderID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "payment for order", orderID)
	}
	p, err := paymentFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("mongostore: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]domain.Payment, error) {
	cur, err := s.payments.Find(ctx,
		bson.M{"status": string(domain.PaymentPending), "created_at": bson.M{"$lte": createdBefore.UTC()}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find pending payments: %w", err)
	}
	var docs []paymentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode payments: %w", err)
	}

	out := make([]domain.Payment, 0, len(docs))
	for _, d := range docs {
		p, err := paymentFromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("mongostore: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CreateShippingInfos(ctx context.Context, infos []domain.ShippingInfo) error {
	if len(infos) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(infos))
	for _, si := range infos {
		docs = append(docs, shippingToDocument(si))
	}
	if _, err := s.shipping.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongostore: insert shipping infos: %w", err)
	}
	return nil
}

func (s *Store) DeleteShippingInfos(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.shipping.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("mongostore: delete shipping infos: %w", err)
	}
	return nil
}

func (s *Store) ListShippingByTracking(ctx context.Context, trackingNumber string) ([]domain.ShippingInfo, error) {
	return s.findShipping(ctx, bson.M{"tracking_number": trackingNumber})
}

func (s *Store) ListShippingByOrder(ctx context.Context, orderID string) ([]domain.ShippingInfo, error) {
	return s.findShipping(ctx, bson.M{"order_id": orderID})
}

func (s *Store) UpdateShippingStatus(ctx context.Context, id string, status domain.ShippingStatus, at time.Time) error {
	res, err := s.shipping.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update shipping info %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongostore: shipping info %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetBuyer(ctx context.Context, id string) (*domain.Buyer, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, "buyer", id)
	}
	return &domain.Buyer{ID: doc.ID, Email: doc.Email, Name: doc.Name}, nil
}

func (s *Store) findShipping(ctx context.Context, filter bson.M) ([]domain.ShippingInfo, error) {
	cur, err := s.shipping.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find shipping infos: %w", err)
	}
	var docs []shippingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode shipping infos: %w", err)
	}

	out := make([]domain.ShippingInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, shippingFromDocument(d))
	}
	return out, nil
}

// notFound translates mongo.ErrNoDocuments into the domain taxonomy.
func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("mongostore: %s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("mongostore: find %s %s: %w", what, id, err)
}
