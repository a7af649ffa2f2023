package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/repos"
	"beanstore/internal/validate"
)

const (
	maxProductNameLen = 100
	maxDescLen        = 2000
	maxImages         = 20
	maxVariants       = 100
	lowStockDefault   = 5
)

// ProductInput is the writable part of a product. Update replaces every field.
type ProductInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       int              `json:"stock"`
	GrindOption string           `json:"grind_option"`
	IsActive    *bool            `json:"is_active"`
	CategoryID  *string          `json:"category_id"`
}

type ImageInput struct {
	URL     string `json:"url"`
	IsCover bool   `json:"is_cover"`
}

type VariantInput struct {
	OptionValues domain.OptionValues `json:"option_values"`
	Price        *decimal.Decimal    `json:"price"`
	Stock        int                 `json:"stock"`
	IsActive     *bool               `json:"is_active"`
	SKU          *string             `json:"sku"`
}

type AdminCatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
	Inv   *repos.InventoryRepo
	Clock clock
}

func NewAdminCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, inv *repos.InventoryRepo) *AdminCatalogService {
	return &AdminCatalogService{Cats: cats, Prods: prods, Inv: inv}
}

func (s *AdminCatalogService) apply(ctx context.Context, p *domain.Product, in ProductInput) error {
	name, ok := validate.Name(in.Name, maxProductNameLen)
	if !ok {
		return apperr.Validation("商品名稱為必填")
	}
	desc := strings.TrimSpace(in.Description)
	if len([]rune(desc)) > maxDescLen {
		return apperr.Validation("商品描述過長")
	}
	if in.Price == nil {
		return apperr.Validation("商品價格為必填")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("商品價格不可為負數")
	}
	if in.Stock < 0 {
		return apperr.Validation("庫存不可為負數")
	}
	grind := domain.GrindNone
	if strings.TrimSpace(in.GrindOption) != "" {
		g, err := domain.ParseGrindOption(in.GrindOption)
		if err != nil {
			return apperr.Validation("研磨選項不正確")
		}
		grind = g
	}
	var cat *string
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) != "" {
		id := strings.TrimSpace(*in.CategoryID)
		exists, err := s.Cats.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.Validation("分類不存在")
		}
		cat = &id
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	p.Name = name
	p.Description = desc
	p.Price = *in.Price
	p.Stock = in.Stock
	p.GrindOption = grind
	p.IsActive = active
	p.CategoryID = cat
	return nil
}

func (s *AdminCatalogService) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	now := s.Clock.now()
	p := domain.Product{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := s.apply(ctx, &p, in); err != nil {
		return domain.Product{}, err
	}
	if err := s.Prods.Create(ctx, &p); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *AdminCatalogService) Update(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return domain.Product{}, notFound(err, "找不到商品")
	}
	if err := s.apply(ctx, &p, in); err != nil {
		return domain.Product{}, err
	}
	p.UpdatedAt = s.Clock.now()
	ok, err := s.Prods.Update(ctx, &p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	if !ok {
		return domain.Product{}, apperr.NotFound("找不到商品")
	}
	return p, nil
}

func (s *AdminCatalogService) Detail(ctx context.Context, id string) (domain.ProductDetail, error) {
	d, err := s.Prods.Detail(ctx, id)
	if err != nil {
		return domain.ProductDetail{}, notFound(err, "找不到商品")
	}
	return d, nil
}

// ReplaceImages swaps the image list. Exactly one image ends up as cover.
func (s *AdminCatalogService) ReplaceImages(ctx context.Context, id string, in []ImageInput) (domain.ProductDetail, error) {
	if len(in) > maxImages {
		return domain.ProductDetail{}, apperr.Validation(fmt.Sprintf("圖片最多 %d 張", maxImages))
	}
	if _, err := s.Prods.Get(ctx, id); err != nil {
		return domain.ProductDetail{}, notFound(err, "找不到商品")
	}
	images := make([]domain.ProductImage, 0, len(in))
	for _, im := range in {
		u := strings.TrimSpace(im.URL)
		if !imageURL(u) {
			return domain.ProductDetail{}, apperr.Validation("圖片網址格式錯誤")
		}
		images = append(images, domain.ProductImage{ID: uuid.NewString(), ProductID: id, URL: u, IsCover: im.IsCover})
	}
	images = domain.NormalizeImages(images)
	if err := s.Prods.ReplaceImages(ctx, id, images, s.Clock.now()); err != nil {
		return domain.ProductDetail{}, fmt.Errorf("replace images: %w", err)
	}
	return s.Detail(ctx, id)
}

// ReplaceVariants swaps the option set and variants after checking that every
// variant picks one declared value per declared option.
func (s *AdminCatalogService) ReplaceVariants(ctx context.Context, id string, options []domain.ProductOption, in []VariantInput) (domain.ProductDetail, error) {
	if len(in) > maxVariants {
		return domain.ProductDetail{}, apperr.Validation(fmt.Sprintf("規格最多 %d 組", maxVariants))
	}
	cur, err := s.Prods.Detail(ctx, id)
	if err != nil {
		return domain.ProductDetail{}, notFound(err, "找不到商品")
	}
	for i := range options {
		options[i].Name = strings.TrimSpace(options[i].Name)
		for j, v := range options[i].Values {
			options[i].Values[j] = strings.TrimSpace(v)
		}
		options[i].ProductID = id
		options[i].Position = i
	}
	if err := domain.ValidateOptions(options); err != nil {
		return domain.ProductDetail{}, err
	}

	// a combination that survives the edit keeps its id so order items
	// pointing at it can still restore stock
	known := make(map[string]string, len(cur.Variants))
	for _, v := range cur.Variants {
		known[v.OptionValues.Key()] = v.ID
	}

	variants := make([]domain.ProductVariant, 0, len(in))
	for _, v := range in {
		if v.Price == nil {
			return domain.ProductDetail{}, apperr.Validation("規格價格為必填")
		}
		active := true
		if v.IsActive != nil {
			active = *v.IsActive
		}
		var sku *string
		if v.SKU != nil && strings.TrimSpace(*v.SKU) != "" {
			t := strings.TrimSpace(*v.SKU)
			sku = &t
		}
		vals := make(domain.OptionValues, len(v.OptionValues))
		for name, val := range v.OptionValues {
			vals[strings.TrimSpace(name)] = strings.TrimSpace(val)
		}
		if len(vals) != len(v.OptionValues) {
			return domain.ProductDetail{}, apperr.Validation("規格選項名稱重複")
		}
		vid, ok := known[vals.Key()]
		if !ok {
			vid = uuid.NewString()
		}
		variants = append(variants, domain.ProductVariant{
			ID:           vid,
			ProductID:    id,
			OptionValues: vals,
			Price:        *v.Price,
			Stock:        v.Stock,
			IsActive:     active,
			SKU:          sku,
		})
	}
	if err := domain.ValidateVariants(options, variants); err != nil {
		return domain.ProductDetail{}, err
	}
	if err := s.Prods.ReplaceVariants(ctx, id, options, variants, s.Clock.now()); err != nil {
		return domain.ProductDetail{}, fmt.Errorf("replace variants: %w", err)
	}
	return s.Detail(ctx, id)
}

// Inventory lists stock lines at or below maxStock; a negative value uses the
// low-stock default.
func (s *AdminCatalogService) Inventory(ctx context.Context, maxStock int) ([]repos.InventoryRow, error) {
	if maxStock < 0 {
		maxStock = lowStockDefault
	}
	return s.Inv.ListAll(ctx, maxStock)
}

func imageURL(s string) bool {
	if s == "" || len(s) > 1000 {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
