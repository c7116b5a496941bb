package requestmock

import (
	"context"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Nil funcs are no-ops for writes and context.Canceled for reads.
type Repo struct {
	CreateFn                 func(ctx context.Context, r *domain.AffiliationRequest) error
	GetByIDFn                func(ctx context.Context, id uint64) (*domain.AffiliationRequest, error)
	GetByIDForUpdateFn       func(ctx context.Context, id uint64) (*domain.AffiliationRequest, error)
	GetOpenByAffiliationIDFn func(ctx context.Context, affiliationID string) (*domain.AffiliationRequest, error)
	ListFn                   func(ctx context.Context) ([]domain.AffiliationRequest, error)
	SaveFn                   func(ctx context.Context, r *domain.AffiliationRequest) error
	AppendHistoryFn          func(ctx context.Context, h *domain.History) error
	ListHistoryFn            func(ctx context.Context, requestID uint64) ([]domain.History, error)

	// History collects every appended row when AppendHistoryFn is nil.
	History []domain.History
}

func (m *Repo) Create(ctx context.Context, r *domain.AffiliationRequest) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.AffiliationRequest, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.AffiliationRequest, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) GetOpenByAffiliationID(ctx context.Context, affiliationID string) (*domain.AffiliationRequest, error) {
	if m.GetOpenByAffiliationIDFn != nil {
		return m.GetOpenByAffiliationIDFn(ctx, affiliationID)
	}
	return nil, context.Canceled
}
func (m *Repo) List(ctx context.Context) ([]domain.AffiliationRequest, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, context.Canceled
}
func (m *Repo) Save(ctx context.Context, r *domain.AffiliationRequest) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, r)
	}
	return nil
}
func (m *Repo) AppendHistory(ctx context.Context, h *domain.History) error {
	if m.AppendHistoryFn != nil {
		return m.AppendHistoryFn(ctx, h)
	}
	m.History = append(m.History, *h)
	return nil
}
func (m *Repo) ListHistory(ctx context.Context, requestID uint64) ([]domain.History, error) {
	if m.ListHistoryFn != nil {
		return m.ListHistoryFn(ctx, requestID)
	}
	return nil, context.Canceled
}
