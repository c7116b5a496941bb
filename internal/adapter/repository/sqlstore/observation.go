package sqlstore

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ObservationRepository struct{ db *gorm.DB }

func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

func (r *ObservationRepository) Create(ctx context.Context, o *observation.Observation) error {
	return r.db.WithContext(ctx).Omit("Type").Create(o).Error
}

func (r *ObservationRepository) GetByID(ctx context.Context, id uint64) (*observation.Observation, error) {
	var out observation.Observation
	res := r.db.WithContext(ctx).Preload("Type").First(&out, id)
	return &out, res.Error
}

func (r *ObservationRepository) Save(ctx context.Context, o *observation.Observation) error {
	return r.db.WithContext(ctx).Omit("Type").Save(o).Error
}

func (r *ObservationRepository) CountPending(ctx context.Context, requestID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&observation.Observation{}).
		Where("affiliation_request_id = ? AND status = ?", requestID, observation.StatusPending).
		Count(&n).Error
	return n, err
}

func (r *ObservationRepository) ListByRequest(ctx context.Context, requestID uint64) ([]observation.Observation, error) {
	var out []observation.Observation
	err := r.db.WithContext(ctx).
		Preload("Type").
		Where("affiliation_request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *ObservationRepository) AddSelectedCauses(ctx context.Context, observationID uint64, causeIDs []uint64) error {
	if len(causeIDs) == 0 {
		return nil
	}
	rows := make([]observation.SelectedCause, 0, len(causeIDs))
	for _, id := range causeIDs {
		rows = append(rows, observation.SelectedCause{ObservationID: observationID, CauseID: id})
	}
	return r.db.WithContext(ctx).Omit("Cause").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *ObservationRepository) ListSelectedCauses(ctx context.Context, observationID uint64) ([]observation.SelectedCause, error) {
	var out []observation.SelectedCause
	err := r.db.WithContext(ctx).
		Preload("Cause").
		Where("affiliation_observation_id = ?", observationID).
		Order("observation_cause_id").
		Find(&out).Error
	return out, err
}
