// Package dashboard turns a product snapshot into chart series.
package dashboard

import "github.com/fairyhunter13/cafe-inventory/internal/model"

// Series holds three parallel sequences keyed by list position: the i-th
// label, quantity and price all describe the i-th product of the input.
type Series struct {
	Labels     []string  `json:"labels"`
	Quantities []int64   `json:"quantities"`
	Prices     []float64 `json:"prices"`
}

// Summary aggregates a snapshot for the dashboard header.
type Summary struct {
	Products      int      `json:"products"`
	TotalQuantity int64    `json:"total_quantity"`
	TotalValue    float64  `json:"total_value"`
	LowStock      []string `json:"low_stock"`
}

// View is everything the dashboard renders.
type View struct {
	Series  Series  `json:"series"`
	Summary Summary `json:"summary"`
}

// ProjectSeries projects products into chart series, preserving order.
// An empty input yields empty, non-nil series.
func ProjectSeries(products []model.Product) Series {
	s := Series{
		Labels:     make([]string, 0, len(products)),
		Quantities: make([]int64, 0, len(products)),
		Prices:     make([]float64, 0, len(products)),
	}
	for _, p := range products {
		s.Labels = append(s.Labels, p.Name)
		s.Quantities = append(s.Quantities, p.Quantity)
		s.Prices = append(s.Prices, p.Price)
	}
	return s
}

// Summarize totals the snapshot. Products with quantity at or below
// lowStock are listed by id.
func Summarize(products []model.Product, lowStock int64) Summary {
	sum := Summary{Products: len(products), LowStock: []string{}}
	for _, p := range products {
		sum.TotalQuantity += p.Quantity
		sum.TotalValue += p.Price * float64(p.Quantity)
		if p.Quantity <= lowStock {
			sum.LowStock = append(sum.LowStock, p.ID)
		}
	}
	return sum
}

// Build returns the full dashboard view of products.
func Build(products []model.Product, lowStock int64) View {
	return View{Series: ProjectSeries(products), Summary: Summarize(products, lowStock)}
}
