package observation

import "context"

// Repository covers observations raised on requests.
type Repository interface {
	Create(ctx context.Context, o *Observation) error
	// GetByID preloads the observation type.
	GetByID(ctx context.Context, id uint64) (*Observation, error)
	Save(ctx context.Context, o *Observation) error
	CountPending(ctx context.Context, requestID uint64) (int64, error)
	ListByRequest(ctx context.Context, requestID uint64) ([]Observation, error)

	AddSelectedCauses(ctx context.Context, observationID uint64, causeIDs []uint64) error
	ListSelectedCauses(ctx context.Context, observationID uint64) ([]SelectedCause, error)
}

// CatalogRepository covers observation types, their causes and product links.
type CatalogRepository interface {
	GetType(ctx context.Context, id uint64) (*Type, error)
	GetTypeByCode(ctx context.Context, code string) (*Type, error)
	ListTypes(ctx context.Context) ([]Type, error)
	// ListTypesForProduct returns active types linked to the product, optionally
	// filtered by kind, with active causes preloaded.
	ListTypesForProduct(ctx context.Context, productID uint64, kind *Kind) ([]Type, error)
	CreateType(ctx context.Context, t *Type) error
	SetTypeActive(ctx context.Context, id uint64, active bool) error

	CreateCause(ctx context.Context, c *Cause) error
	GetCauses(ctx context.Context, ids []uint64) ([]Cause, error)

	// LinkProduct reports whether the link was new.
	LinkProduct(ctx context.Context, productID, typeID uint64) (bool, error)
}
