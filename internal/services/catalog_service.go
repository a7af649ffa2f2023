package services

import (
	"context"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/repos"
)

// CatalogService is the storefront's read side of the catalog.
type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) ListProducts(ctx context.Context, f repos.ProductFilter) ([]domain.Product, error) {
	return s.Prods.List(ctx, f)
}

// GetProduct returns the product with its images and purchasable variants.
// Inactive products are hidden unless includeInactive is set.
func (s *CatalogService) GetProduct(ctx context.Context, id string, includeInactive bool) (domain.ProductDetail, error) {
	d, err := s.Prods.Detail(ctx, id)
	if err != nil {
		return domain.ProductDetail{}, notFound(err, "找不到商品")
	}
	if includeInactive {
		return d, nil
	}
	if !d.IsActive {
		return domain.ProductDetail{}, apperr.NotFound("找不到商品")
	}
	active := d.Variants[:0]
	for _, v := range d.Variants {
		if v.IsActive {
			active = append(active, v)
		}
	}
	d.Variants = active
	return d, nil
}
