package affiliationmock

import (
	"context"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn       func(ctx context.Context, a *domain.Affiliation) error
	GetByIDFn      func(ctx context.Context, id string) (*domain.Affiliation, error)
	ListFn         func(ctx context.Context) ([]domain.Affiliation, error)
	UpdateStatusFn func(ctx context.Context, id string, s domain.Status) error
	UpdateStepFn   func(ctx context.Context, id string, step int) error
}

func (m *Repo) Create(ctx context.Context, a *domain.Affiliation) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, id string) (*domain.Affiliation, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) List(ctx context.Context) ([]domain.Affiliation, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, context.Canceled
}
func (m *Repo) UpdateStatus(ctx context.Context, id string, s domain.Status) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, s)
	}
	return nil
}
func (m *Repo) UpdateStep(ctx context.Context, id string, step int) error {
	if m.UpdateStepFn != nil {
		return m.UpdateStepFn(ctx, id, step)
	}
	return nil
}
