package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"beanstore/internal/domain"
)

const productCols = `id,name,description,price,stock,grind_option,is_active,category_id,created_at,updated_at`

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

type ProductFilter struct {
	ActiveOnly bool
	CategoryID string
}

func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	where := `1=1`
	args := []any{}
	if f.ActiveOnly {
		where += ` AND is_active = ?`
		args = append(args, true)
	}
	if f.CategoryID != "" {
		where += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+productCols+`
		FROM products
		WHERE `+where+`
		ORDER BY created_at DESC, name`), args...)
	return out, err
}

// Get returns sql.ErrNoRows for unknown ids.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id=?`), id)
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products(`+productCols+`)
		VALUES(:id,:name,:description,:price,:stock,:grind_option,:is_active,:category_id,:created_at,:updated_at)`, p)
	return err
}

// Update writes every mutable column and reports whether the product exists.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE products SET
		  name=:name, description=:description, price=:price, stock=:stock,
		  grind_option=:grind_option, is_active=:is_active, category_id=:category_id,
		  updated_at=:updated_at
		WHERE id=:id`, p)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Detail loads the product with its images, options and variants.
func (r *ProductRepo) Detail(ctx context.Context, id string) (domain.ProductDetail, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return domain.ProductDetail{}, err
	}
	d := domain.ProductDetail{
		Product:  p,
		Images:   []domain.ProductImage{},
		Options:  []domain.ProductOption{},
		Variants: []domain.ProductVariant{},
	}
	if err := r.db.SelectContext(ctx, &d.Images, r.db.Rebind(`
		SELECT id,product_id,url,sort_order,is_cover
		FROM product_images WHERE product_id=?
		ORDER BY sort_order`), id); err != nil {
		return domain.ProductDetail{}, err
	}
	if err := r.db.SelectContext(ctx, &d.Options, r.db.Rebind(`
		SELECT product_id,name,position,values_json
		FROM product_options WHERE product_id=?
		ORDER BY position`), id); err != nil {
		return domain.ProductDetail{}, err
	}
	if err := r.db.SelectContext(ctx, &d.Variants, r.db.Rebind(`
		SELECT id,product_id,options_json,price,stock,is_active,sku
		FROM product_variants WHERE product_id=?
		ORDER BY position`), id); err != nil {
		return domain.ProductDetail{}, err
	}
	return d, nil
}

// ReplaceImages swaps the full image list in one transaction. Images must
// already be normalized.
func (r *ProductRepo) ReplaceImages(ctx context.Context, productID string, images []domain.ProductImage, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM product_images WHERE product_id=?`), productID); err != nil {
		return err
	}
	for _, im := range images {
		if im.ID == "" {
			im.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO product_images(id,product_id,url,sort_order,is_cover)
			VALUES(?,?,?,?,?)`), im.ID, productID, im.URL, im.SortOrder, im.IsCover); err != nil {
			return err
		}
	}
	if err := touchProduct(ctx, tx, productID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceVariants swaps the option set and the variant list together so the
// two never disagree. Callers validate first.
func (r *ProductRepo) ReplaceVariants(ctx context.Context, productID string, options []domain.ProductOption, variants []domain.ProductVariant, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM product_options WHERE product_id=?`,
		`DELETE FROM product_variants WHERE product_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), productID); err != nil {
			return err
		}
	}
	for i, o := range options {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO product_options(product_id,name,position,values_json)
			VALUES(?,?,?,?)`), productID, o.Name, i, o.Values); err != nil {
			return err
		}
	}
	for i, v := range variants {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO product_variants(id,product_id,options_json,price,stock,is_active,sku,position)
			VALUES(?,?,?,?,?,?,?,?)`), v.ID, productID, v.OptionValues, v.Price, v.Stock, v.IsActive, v.SKU, i); err != nil {
			return err
		}
	}
	if err := touchProduct(ctx, tx, productID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Variant returns sql.ErrNoRows unless the variant belongs to the product.
func (r *ProductRepo) Variant(ctx context.Context, productID, variantID string) (domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := r.db.GetContext(ctx, &v, r.db.Rebind(`
		SELECT id,product_id,options_json,price,stock,is_active,sku
		FROM product_variants WHERE id=? AND product_id=?`), variantID, productID)
	return v, err
}

func touchProduct(ctx context.Context, tx *sqlx.Tx, productID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE products SET updated_at=? WHERE id=?`), now, productID)
	return err
}
