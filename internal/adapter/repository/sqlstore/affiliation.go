package sqlstore

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"

	"gorm.io/gorm"
)

type AffiliationRepository struct{ db *gorm.DB }

func NewAffiliationRepository(db *gorm.DB) *AffiliationRepository {
	return &AffiliationRepository{db: db}
}

func (r *AffiliationRepository) Create(ctx context.Context, a *affiliation.Affiliation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AffiliationRepository) GetByID(ctx context.Context, id string) (*affiliation.Affiliation, error) {
	var out affiliation.Affiliation
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *AffiliationRepository) List(ctx context.Context) ([]affiliation.Affiliation, error) {
	var out []affiliation.Affiliation
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *AffiliationRepository) UpdateStatus(ctx context.Context, id string, s affiliation.Status) error {
	return r.updateColumn(ctx, id, "status", s)
}

func (r *AffiliationRepository) UpdateStep(ctx context.Context, id string, step int) error {
	return r.updateColumn(ctx, id, "current_step", step)
}

func (r *AffiliationRepository) updateColumn(ctx context.Context, id, column string, value any) error {
	// RowsAffected is not checked: MySQL reports 0 for a same-value update.
	return r.db.WithContext(ctx).Model(&affiliation.Affiliation{}).Where("id = ?", id).Update(column, value).Error
}
