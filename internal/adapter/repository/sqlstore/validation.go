package sqlstore

import (
	"context"
	"database/sql"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"

	"gorm.io/gorm"
)

type ValidationRepository struct{ db *gorm.DB }

func NewValidationRepository(db *gorm.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

func (r *ValidationRepository) GetResult(ctx context.Context, affiliationID string, observationTypeID uint64) (*validation.Result, error) {
	var out validation.Result
	res := r.db.WithContext(ctx).
		Where("affiliation_id = ? AND observation_type_id = ?", affiliationID, observationTypeID).
		First(&out)
	return &out, res.Error
}

func (r *ValidationRepository) GetResultByID(ctx context.Context, id uint64) (*validation.Result, error) {
	var out validation.Result
	res := r.db.WithContext(ctx).First(&out, id)
	return &out, res.Error
}

func (r *ValidationRepository) CreateResult(ctx context.Context, v *validation.Result) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *ValidationRepository) SaveResult(ctx context.Context, v *validation.Result) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *ValidationRepository) ListResults(ctx context.Context, affiliationID string) ([]validation.Result, error) {
	var out []validation.Result
	err := r.db.WithContext(ctx).
		Where("affiliation_id = ?", affiliationID).
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *ValidationRepository) ListResultsByStatus(ctx context.Context, affiliationID string, s validation.Status) ([]validation.Result, error) {
	var out []validation.Result
	err := r.db.WithContext(ctx).
		Where("affiliation_id = ? AND status = ?", affiliationID, s).
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *ValidationRepository) NextAttempt(ctx context.Context, resultID uint64) (int, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(&validation.History{}).
		Select("MAX(attempt_number)").
		Where("validation_result_id = ?", resultID).
		Row().Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

func (r *ValidationRepository) AppendHistory(ctx context.Context, h *validation.History) error {
	return r.db.WithContext(ctx).Omit("ProviderResponse").Create(h).Error
}

func (r *ValidationRepository) ListHistory(ctx context.Context, resultID uint64) ([]validation.History, error) {
	var out []validation.History
	err := r.db.WithContext(ctx).
		Preload("ProviderResponse").
		Where("validation_result_id = ?", resultID).
		Order("created_at DESC, attempt_number DESC").
		Find(&out).Error
	return out, err
}

func (r *ValidationRepository) CreateProviderResponse(ctx context.Context, pr *validation.ProviderResponse) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

func (r *ValidationRepository) GetProviderResponse(ctx context.Context, id uint64) (*validation.ProviderResponse, error) {
	var out validation.ProviderResponse
	res := r.db.WithContext(ctx).First(&out, id)
	return &out, res.Error
}
