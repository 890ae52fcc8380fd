// Package jobs runs scheduled background work such as the stock audit.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

// ProductLister is the part of the catalog the audit reads.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// StockAudit re-lists the catalog and reports products at or below the
// low-stock threshold.
type StockAudit struct {
	products  ProductLister
	threshold int64
	timeout   time.Duration
}

var _ cron.Job = (*StockAudit)(nil)

// NewStockAudit returns an audit over products.
func NewStockAudit(products ProductLister, threshold int64) *StockAudit {
	return &StockAudit{products: products, threshold: threshold, timeout: 30 * time.Second}
}

// Run implements cron.Job.
func (a *StockAudit) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if _, err := a.Audit(ctx); err != nil {
		obs.Logger.Errorw("stock_audit_failed", "error", err)
	}
}

// Audit returns the products at or below the threshold, in catalog order.
func (a *StockAudit) Audit(ctx context.Context) ([]model.Product, error) {
	products, err := a.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]model.Product, 0)
	for _, p := range products {
		if p.Quantity <= a.threshold {
			low = append(low, p)
			obs.Logger.Warnw("low_stock", "product_id", p.ID, "name", p.Name, "quantity", p.Quantity, "threshold", a.threshold)
		}
	}
	obs.SetLowStock(len(low))
	obs.Logger.Infow("stock_audit_done", "products", len(products), "low_stock", len(low))
	return low, nil
}
