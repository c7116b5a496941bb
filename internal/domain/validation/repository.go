package validation

import "context"

type Repository interface {
	GetResult(ctx context.Context, affiliationID string, observationTypeID uint64) (*Result, error)
	GetResultByID(ctx context.Context, id uint64) (*Result, error)
	CreateResult(ctx context.Context, r *Result) error
	SaveResult(ctx context.Context, r *Result) error
	ListResults(ctx context.Context, affiliationID string) ([]Result, error)
	ListResultsByStatus(ctx context.Context, affiliationID string, s Status) ([]Result, error)

	// NextAttempt returns max(attempt_number)+1 for the result, or 1 when empty.
	NextAttempt(ctx context.Context, resultID uint64) (int, error)
	AppendHistory(ctx context.Context, h *History) error
	// ListHistory is newest first, with provider responses preloaded.
	ListHistory(ctx context.Context, resultID uint64) ([]History, error)

	CreateProviderResponse(ctx context.Context, pr *ProviderResponse) error
	GetProviderResponse(ctx context.Context, id uint64) (*ProviderResponse, error)
}
