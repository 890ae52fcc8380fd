// Package catalog manages café products and their stock levels.
package catalog

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

// Publisher receives change events after successful writes.
type Publisher interface {
	Enqueue(ev model.Event) bool
}

// Service owns product writes and keeps a snapshot of the product collection
// that is replaced by a full re-list after every successful write.
type Service struct {
	st     store.Store
	tracer obs.Tracer
	events Publisher

	mu       sync.RWMutex
	snapshot []model.Product
}

// NewService creates a catalog Service. tracer and events may be nil.
func NewService(st store.Store, tracer obs.Tracer, events Publisher) *Service {
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	return &Service{st: st, tracer: tracer, events: events, snapshot: []model.Product{}}
}

// ListProducts fetches the product collection and replaces the snapshot.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListProducts")
	defer span.End()
	products, err := s.list(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// Products returns a copy of the current snapshot without touching the store.
func (s *Service) Products() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// CreateProduct validates the form and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, form model.ProductForm) (model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.CreateProduct")
	defer span.End()

	p, err := parseForm(form)
	if err != nil {
		fail(span, err)
		return model.Product{}, err
	}
	doc, err := s.st.Create(ctx, model.CollectionProducts, toFields(p))
	if err != nil {
		fail(span, err)
		return model.Product{}, err
	}
	p.ID = doc.ID
	span.SetAttributes(attribute.String("product.id", p.ID))
	obs.Logger.Infow("product_created", "product_id", p.ID, "name", p.Name, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventProductCreated, p.ID, 0, p.Quantity)
	s.refresh(ctx)
	return p, nil
}

// UpdateProduct overwrites every mutable field of product id.
func (s *Service) UpdateProduct(ctx context.Context, id string, form model.ProductForm) (model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	p, err := parseForm(form)
	if err != nil {
		fail(span, err)
		return model.Product{}, err
	}
	if err := s.st.Update(ctx, model.CollectionProducts, id, toFields(p)); err != nil {
		fail(span, err)
		return model.Product{}, err
	}
	p.ID = id
	obs.Logger.Infow("product_updated", "product_id", id, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventProductUpdated, id, 0, p.Quantity)
	s.refresh(ctx)
	return p, nil
}

// DeleteProduct removes product id. Callers confirm with the user first.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.DeleteProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := s.st.Delete(ctx, model.CollectionProducts, id); err != nil {
		fail(span, err)
		return err
	}
	obs.Logger.Infow("product_deleted", "product_id", id, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventProductDeleted, id, 0, 0)
	s.refresh(ctx)
	return nil
}

// Restock adds amount units to product id. Zero is accepted.
func (s *Service) Restock(ctx context.Context, id string, amount int64) (model.Product, error) {
	if amount < 0 {
		obs.ObserveStock("restock", "invalid")
		return model.Product{}, model.NewValidationError("must be a non-negative whole number", "amount")
	}
	return s.adjust(ctx, "restock", id, amount, store.NoFloor)
}

// Sell removes amount units from product id. Selling more than is in stock
// fails with model.ErrInsufficientStock and leaves the quantity unchanged.
func (s *Service) Sell(ctx context.Context, id string, amount int64) (model.Product, error) {
	if amount <= 0 {
		obs.ObserveStock("sell", "invalid")
		return model.Product{}, model.NewValidationError("must be a positive whole number", "amount")
	}
	return s.adjust(ctx, "sell", id, -amount, 0)
}

func (s *Service) adjust(ctx context.Context, kind, id string, delta, floor int64) (model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog."+kind, trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int64("stock.delta", delta),
	))
	defer span.End()

	doc, err := s.st.Adjust(ctx, model.CollectionProducts, id, "quantity", delta, floor)
	if err != nil {
		fail(span, err)
		obs.ObserveStock(kind, outcome(err))
		obs.Logger.Warnw("stock_adjust_rejected", "kind", kind, "product_id", id, "delta", delta, "error", err)
		return model.Product{}, err
	}
	obs.ObserveStock(kind, "ok")
	p := fromDocument(doc)
	span.SetAttributes(attribute.Int64("stock.quantity", p.Quantity))

	evKind := model.EventStockRestocked
	if kind == "sell" {
		evKind = model.EventStockSold
	}
	obs.Logger.Infow(string(evKind), "product_id", id, "delta", delta, "quantity", p.Quantity, "actor", auth.Actor(ctx))
	s.publish(ctx, evKind, id, delta, p.Quantity)
	s.refresh(ctx)
	return p, nil
}

// ParseAmount parses a stock form amount into a whole number.
func ParseAmount(raw model.FormValue) (int64, error) {
	v := raw.Trimmed()
	if v == "" {
		return 0, model.NewValidationError("is required", "amount")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, model.NewValidationError("must be a whole number", "amount")
	}
	return n, nil
}

func (s *Service) list(ctx context.Context) ([]model.Product, error) {
	docs, err := s.st.List(ctx, model.CollectionProducts)
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, fromDocument(d))
	}
	s.mu.Lock()
	s.snapshot = products
	s.mu.Unlock()
	out := make([]model.Product, len(products))
	copy(out, products)
	return out, nil
}

// refresh re-lists after a write. The write already happened, so a failed
// refresh only leaves the snapshot stale.
func (s *Service) refresh(ctx context.Context) {
	if _, err := s.list(ctx); err != nil {
		obs.Logger.Warnw("products_refresh_failed", "error", err)
	}
}

func (s *Service) publish(ctx context.Context, kind model.EventKind, id string, delta, quantity int64) {
	if s.events == nil {
		return
	}
	ok := s.events.Enqueue(model.Event{
		Kind:       kind,
		Collection: model.CollectionProducts,
		DocumentID: id,
		Actor:      auth.Actor(ctx),
		Delta:      delta,
		Quantity:   quantity,
		At:         time.Now().UTC(),
	})
	if !ok {
		obs.Logger.Warnw("event_dropped", "kind", kind, "product_id", id)
	}
}

func parseForm(form model.ProductForm) (model.Product, error) {
	form.Normalize()
	if err := model.Validate(form); err != nil {
		return model.Product{}, err
	}
	price, err := strconv.ParseFloat(string(form.Price), 64)
	if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return model.Product{}, model.NewValidationError("must be a non-negative number", "price")
	}
	qty, err := strconv.ParseInt(string(form.Quantity), 10, 64)
	if err != nil || qty < 0 {
		return model.Product{}, model.NewValidationError("must be a non-negative whole number", "quantity")
	}
	return model.Product{
		Name:        string(form.Name),
		Description: string(form.Description),
		Category:    string(form.Category),
		Price:       price,
		Quantity:    qty,
	}, nil
}

func toFields(p model.Product) store.Fields {
	return store.Fields{
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"price":       p.Price,
		"quantity":    p.Quantity,
	}
}

func fromDocument(d store.Document) model.Product {
	return model.Product{
		ID:          d.ID,
		Name:        d.Fields.String("name"),
		Description: d.Fields.String("description"),
		Category:    d.Fields.String("category"),
		Price:       d.Fields.Float("price"),
		Quantity:    d.Fields.Int("quantity"),
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
