package uow

import (
	"context"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

// Repos bundles repositories bound to one transaction.
type Repos struct {
	Affiliations affiliation.Repository
	Products     product.Repository
	Requests     request.Repository
	Observations observation.Repository
	Catalog      observation.CatalogRepository
	Validations  validation.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the request row first, then pass it in
	WithinRequestTx(ctx context.Context, requestID uint64, fn func(r Repos, req *request.AffiliationRequest) error) error
}
