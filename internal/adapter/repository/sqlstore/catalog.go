package sqlstore

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepository struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) *CatalogRepository { return &CatalogRepository{db: db} }

func (r *CatalogRepository) GetType(ctx context.Context, id uint64) (*observation.Type, error) {
	var out observation.Type
	res := r.db.WithContext(ctx).Preload("Causes").First(&out, id)
	return &out, res.Error
}

func (r *CatalogRepository) GetTypeByCode(ctx context.Context, code string) (*observation.Type, error) {
	var out observation.Type
	res := r.db.WithContext(ctx).Where("code = ?", code).First(&out)
	return &out, res.Error
}

func (r *CatalogRepository) ListTypes(ctx context.Context) ([]observation.Type, error) {
	var out []observation.Type
	err := r.db.WithContext(ctx).Preload("Causes").Order("id").Find(&out).Error
	return out, err
}

func (r *CatalogRepository) ListTypesForProduct(ctx context.Context, productID uint64, kind *observation.Kind) ([]observation.Type, error) {
	q := r.db.WithContext(ctx).
		Preload("Causes", "is_active = ?", true).
		Joins("JOIN t_product_observation_type pot ON pot.observation_type_id = t_affiliation_observation_type.id").
		Where("pot.product_id = ? AND t_affiliation_observation_type.is_active = ?", productID, true)
	if kind != nil {
		q = q.Where("t_affiliation_observation_type.type = ?", *kind)
	}
	var out []observation.Type
	err := q.Order("t_affiliation_observation_type.id").Find(&out).Error
	return out, err
}

func (r *CatalogRepository) CreateType(ctx context.Context, t *observation.Type) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *CatalogRepository) SetTypeActive(ctx context.Context, id uint64, active bool) error {
	return r.db.WithContext(ctx).Model(&observation.Type{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *CatalogRepository) CreateCause(ctx context.Context, c *observation.Cause) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CatalogRepository) GetCauses(ctx context.Context, ids []uint64) ([]observation.Cause, error) {
	var out []observation.Cause
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

func (r *CatalogRepository) LinkProduct(ctx context.Context, productID, typeID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&observation.ProductType{ProductID: productID, ObservationTypeID: typeID})
	return res.RowsAffected > 0, res.Error
}
