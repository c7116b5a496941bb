package sqlstore

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository struct{ db *gorm.DB }

func NewRequestRepository(db *gorm.DB) *RequestRepository { return &RequestRepository{db: db} }

func (r *RequestRepository) Create(ctx context.Context, req *request.AffiliationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetByID(ctx context.Context, id uint64) (*request.AffiliationRequest, error) {
	var out request.AffiliationRequest
	res := r.db.WithContext(ctx).First(&out, id)
	return &out, res.Error
}

// GetByIDForUpdate issues SELECT ... FOR UPDATE; the sqlite dialect drops the
// locking clause.
func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*request.AffiliationRequest, error) {
	var out request.AffiliationRequest
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&out, id)
	return &out, res.Error
}

func (r *RequestRepository) GetOpenByAffiliationID(ctx context.Context, affiliationID string) (*request.AffiliationRequest, error) {
	var out request.AffiliationRequest
	res := r.db.WithContext(ctx).
		Where("affiliation_id = ? AND status IN ?", affiliationID,
			[]request.Status{request.StatusPending, request.StatusObserved}).
		Order("created_at DESC, id DESC").
		First(&out)
	return &out, res.Error
}

func (r *RequestRepository) List(ctx context.Context) ([]request.AffiliationRequest, error) {
	var out []request.AffiliationRequest
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *RequestRepository) Save(ctx context.Context, req *request.AffiliationRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *RequestRepository) AppendHistory(ctx context.Context, h *request.History) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *RequestRepository) ListHistory(ctx context.Context, requestID uint64) ([]request.History, error) {
	var out []request.History
	err := r.db.WithContext(ctx).
		Where("affiliation_request_id = ?", requestID).
		Order("changed_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
