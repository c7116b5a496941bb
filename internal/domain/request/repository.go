package request

import "context"

type Repository interface {
	Create(ctx context.Context, r *AffiliationRequest) error
	GetByID(ctx context.Context, id uint64) (*AffiliationRequest, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*AffiliationRequest, error)
	// GetOpenByAffiliationID returns the newest non-terminal request.
	GetOpenByAffiliationID(ctx context.Context, affiliationID string) (*AffiliationRequest, error)
	List(ctx context.Context) ([]AffiliationRequest, error)
	Save(ctx context.Context, r *AffiliationRequest) error

	AppendHistory(ctx context.Context, h *History) error
	ListHistory(ctx context.Context, requestID uint64) ([]History, error)
}
