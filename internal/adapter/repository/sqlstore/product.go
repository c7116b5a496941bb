package sqlstore

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"

	"gorm.io/gorm"
)

type ProductRepository struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) *ProductRepository { return &ProductRepository{db: db} }

func (r *ProductRepository) GetByID(ctx context.Context, id uint64) (*product.Product, error) {
	var out product.Product
	res := r.db.WithContext(ctx).First(&out, id)
	return &out, res.Error
}

func (r *ProductRepository) GetByName(ctx context.Context, name string) (*product.Product, error) {
	var out product.Product
	res := r.db.WithContext(ctx).Where("name = ?", name).First(&out)
	return &out, res.Error
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) GetConfig(ctx context.Context, id uint64) (*product.RequestConfig, error) {
	var out product.RequestConfig
	res := r.db.WithContext(ctx).Preload("Product").First(&out, id)
	return &out, res.Error
}

func (r *ProductRepository) GetConfigByProduct(ctx context.Context, productID uint64) (*product.RequestConfig, error) {
	var out product.RequestConfig
	res := r.db.WithContext(ctx).Preload("Product").Where("product_id = ?", productID).First(&out)
	return &out, res.Error
}

func (r *ProductRepository) ListConfigs(ctx context.Context) ([]product.RequestConfig, error) {
	var out []product.RequestConfig
	err := r.db.WithContext(ctx).Preload("Product").Order("id").Find(&out).Error
	return out, err
}

func (r *ProductRepository) CreateConfig(ctx context.Context, c *product.RequestConfig) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ProductRepository) SetAutoApprove(ctx context.Context, configID uint64, autoApprove bool) error {
	return r.db.WithContext(ctx).Model(&product.RequestConfig{}).
		Where("id = ?", configID).
		Update("auto_approve", autoApprove).Error
}
