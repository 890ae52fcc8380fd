package app

import (
	"context"

	"github.com/fairyhunter13/cafe-inventory/internal/catalog"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

// SeedProducts is the starter menu loaded by the seed command.
var SeedProducts = []model.ProductForm{
	{Name: "Muffin", Description: "Blueberry muffin", Category: "Bakery", Price: "2.50", Quantity: "10"},
	{Name: "Croissant", Description: "Butter croissant", Category: "Bakery", Price: "2.20", Quantity: "12"},
	{Name: "Espresso Beans", Description: "1kg house blend", Category: "Coffee", Price: "18.00", Quantity: "4"},
	{Name: "Oat Milk", Description: "1L carton", Category: "Dairy-free", Price: "2.90", Quantity: "8"},
}

// Seed creates every product in SeedProducts whose name is not already in
// the catalog. It returns the products it created.
func Seed(ctx context.Context, cat *catalog.Service) ([]model.Product, error) {
	existing, err := cat.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}
	var created []model.Product
	for _, form := range SeedProducts {
		if have[string(form.Name)] {
			continue
		}
		p, err := cat.CreateProduct(ctx, form)
		if err != nil {
			return created, err
		}
		created = append(created, p)
	}
	obs.Logger.Infow("seed_complete", "created", len(created), "existing", len(existing))
	return created, nil
}
