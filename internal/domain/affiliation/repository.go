package affiliation

import "context"

type Repository interface {
	Create(ctx context.Context, a *Affiliation) error
	GetByID(ctx context.Context, id string) (*Affiliation, error)
	List(ctx context.Context) ([]Affiliation, error)
	UpdateStatus(ctx context.Context, id string, s Status) error
	UpdateStep(ctx context.Context, id string, step int) error
}
