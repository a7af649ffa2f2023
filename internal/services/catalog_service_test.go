package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/repos"
	"beanstore/internal/services"
)

func TestCatalogVisibility(t *testing.T) {
	ctx := context.Background()
	db := memdb(t)
	s := services.NewCatalogService(repos.NewCategoryRepo(db), repos.NewProductRepo(db))

	active, err := s.ListProducts(ctx, repos.ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	all, err := s.ListProducts(ctx, repos.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 3)
	assert.Len(t, all, 4)
	for _, p := range active {
		assert.True(t, p.IsActive, p.ID)
	}

	blend, err := s.ListProducts(ctx, repos.ProductFilter{ActiveOnly: true, CategoryID: "blend"})
	require.NoError(t, err)
	require.Len(t, blend, 1)
	assert.Equal(t, "house-espresso", blend[0].ID)

	_, err = s.GetProduct(ctx, "kenya-aa-2023", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	d, err := s.GetProduct(ctx, "kenya-aa-2023", true)
	require.NoError(t, err)
	assert.False(t, d.IsActive)
	_, err = s.GetProduct(ctx, "ghost", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestAdminProductCRUD(t *testing.T) {
	ctx := context.Background()
	db := memdb(t)
	s := services.NewAdminCatalogService(repos.NewCategoryRepo(db), repos.NewProductRepo(db), repos.NewInventoryRepo(db))

	_, err := s.Create(ctx, services.ProductInput{Price: decPtr(300)})
	assert.ErrorIs(t, err, apperr.ErrValidation, "name required")
	_, err = s.Create(ctx, services.ProductInput{Name: "X"})
	assert.ErrorIs(t, err, apperr.ErrValidation, "price required")
	_, err = s.Create(ctx, services.ProductInput{Name: "X", Price: decPtr(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Create(ctx, services.ProductInput{Name: "X", Price: decPtr(1), CategoryID: strPtr("tea")})
	assert.ErrorIs(t, err, apperr.ErrValidation, "unknown category")

	p, err := s.Create(ctx, services.ProductInput{
		Name: " 瓜地馬拉 安提瓜 ", Price: decPtr(400), Stock: 12, GrindOption: "espresso", CategoryID: strPtr("single-origin"),
	})
	require.NoError(t, err)
	assert.Equal(t, "瓜地馬拉 安提瓜", p.Name)
	assert.True(t, p.IsActive)
	assert.Equal(t, domain.GrindEspresso, p.GrindOption)

	up, err := s.Update(ctx, p.ID, services.ProductInput{Name: "安提瓜", Price: decPtr(410), IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, up.IsActive)
	assert.Nil(t, up.CategoryID)
	assert.Equal(t, p.CreatedAt.Unix(), up.CreatedAt.Unix())

	_, err = s.Update(ctx, "ghost", services.ProductInput{Name: "x", Price: decPtr(1)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdminImagesAndVariants(t *testing.T) {
	ctx := context.Background()
	db := memdb(t)
	s := services.NewAdminCatalogService(repos.NewCategoryRepo(db), repos.NewProductRepo(db), repos.NewInventoryRepo(db))

	d, err := s.ReplaceImages(ctx, "col-huila", []services.ImageInput{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/b.jpg", IsCover: true},
		{URL: "https://cdn.example.com/c.jpg", IsCover: true},
	})
	require.NoError(t, err)
	require.Len(t, d.Images, 3)
	require.NotNil(t, d.Cover())
	assert.Equal(t, "https://cdn.example.com/b.jpg", d.Cover().URL)
	assert.Equal(t, 2, d.Images[2].SortOrder)

	_, err = s.ReplaceImages(ctx, "col-huila", []services.ImageInput{{URL: "javascript:alert(1)"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.ReplaceImages(ctx, "ghost", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	opts := []domain.ProductOption{
		{Name: "烘焙度", Values: domain.StringList{"淺焙", "深焙"}},
		{Name: "重量", Values: domain.StringList{"250g", "500g"}},
	}
	_, err = s.ReplaceVariants(ctx, "col-huila", opts, []services.VariantInput{
		{OptionValues: domain.OptionValues{"烘焙度": "淺焙", "重量": "250g"}, Price: decPtr(380)},
		{OptionValues: domain.OptionValues{"烘焙度": "淺焙", "重量": "250g"}, Price: decPtr(390)},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "duplicate combination")
	_, err = s.ReplaceVariants(ctx, "col-huila", opts, []services.VariantInput{
		{OptionValues: domain.OptionValues{"烘焙度": "淺焙"}, Price: decPtr(380)},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "missing option")
	_, err = s.ReplaceVariants(ctx, "col-huila", opts, []services.VariantInput{
		{OptionValues: domain.OptionValues{"烘焙度": "中焙", "重量": "250g"}, Price: decPtr(380)},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "undeclared value")

	d, err = s.ReplaceVariants(ctx, "col-huila", opts, []services.VariantInput{
		{OptionValues: domain.OptionValues{"烘焙度": "淺焙", "重量": "250g"}, Price: decPtr(380), Stock: 4, SKU: strPtr(" COL-L-250 ")},
		{OptionValues: domain.OptionValues{"烘焙度": "深焙", "重量": "500g"}, Price: decPtr(700), Stock: 9},
	})
	require.NoError(t, err)
	require.Len(t, d.Options, 2)
	require.Len(t, d.Variants, 2)
	assert.Equal(t, "COL-L-250", *d.Variants[0].SKU)
	assert.Len(t, d.Images, 3, "variants leave images alone")

	low, err := s.Inventory(ctx, 5)
	require.NoError(t, err)
	ids := map[string]int{}
	for _, r := range low {
		ids[r.ProductID] = r.Stock
	}
	assert.Contains(t, ids, "kenya-aa-2023")
	assert.Equal(t, 4, ids["col-huila"])
	assert.NotContains(t, ids, "house-espresso")
}
