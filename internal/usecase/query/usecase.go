// Package query serves read-only projections of affiliations, requests and
// their audit trails. Lists are newest first.
package query

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

type Usecase struct{ uow uow.UnitOfWork }

func NewUsecase(tx uow.UnitOfWork) *Usecase { return &Usecase{uow: tx} }

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func (u *Usecase) read(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.uow.WithinTx(ctx, fn)
}

func (u *Usecase) ListAffiliations(ctx context.Context) ([]AffiliationView, error) {
	out := []AffiliationView{}
	err := u.read(ctx, func(r uow.Repos) error {
		list, err := r.Affiliations.List(ctx)
		if err != nil {
			return err
		}
		for _, a := range list {
			out = append(out, toAffiliationView(a))
		}
		return nil
	})
	return out, err
}

func (u *Usecase) GetAffiliation(ctx context.Context, id string) (*AffiliationView, error) {
	var out AffiliationView
	err := u.read(ctx, func(r uow.Repos) error {
		a, err := r.Affiliations.GetByID(ctx, id)
		if err != nil {
			return notFound(err, "affiliation %s", id)
		}
		results, err := r.Validations.ListResults(ctx, a.ID)
		if err != nil {
			return err
		}
		out = toAffiliationView(*a)
		for _, res := range results {
			out.Results = append(out.Results, toResultView(res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// requestViews joins requests with their affiliation and config. Lookups are
// memoized per call since lists repeat products.
type requestViews struct {
	r          uow.Repos
	canObserve map[uint64]bool
}

func (rv *requestViews) build(ctx context.Context, req request.AffiliationRequest, a *affiliation.Affiliation) (RequestView, error) {
	v := RequestView{
		ID:              req.ID,
		AffiliationID:   req.AffiliationID,
		RequestConfigID: req.RequestConfigID,
		Status:          req.Status,
		CreatedBy:       req.CreatedBy,
		ReviewedBy:      req.ReviewedBy,
		ReviewedAt:      req.ReviewedAt,
		CreatedAt:       req.CreatedAt,
	}
	if a != nil {
		v.BusinessName, v.RUC, v.ProductID = a.BusinessName, a.RUC, a.ProductID
	}
	cfg, err := rv.r.Products.GetConfig(ctx, req.RequestConfigID)
	switch {
	case err == nil:
		v.RequestConfigName, v.AutoApprove = cfg.Name, cfg.AutoApprove
		if v.ProductID == 0 {
			v.ProductID = cfg.ProductID
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return v, err
	}
	if v.PendingObservations, err = rv.r.Observations.CountPending(ctx, req.ID); err != nil {
		return v, err
	}
	if v.ProductID != 0 {
		can, ok := rv.canObserve[v.ProductID]
		if !ok {
			kind := observation.KindManual
			types, err := rv.r.Catalog.ListTypesForProduct(ctx, v.ProductID, &kind)
			if err != nil {
				return v, err
			}
			can = len(types) > 0
			rv.canObserve[v.ProductID] = can
		}
		v.CanBeObserved = can
	}
	return v, nil
}

func (u *Usecase) ListRequests(ctx context.Context, f RequestFilter) ([]RequestView, error) {
	out := []RequestView{}
	err := u.read(ctx, func(r uow.Repos) error {
		list, err := r.Requests.List(ctx)
		if err != nil {
			return err
		}
		rv := &requestViews{r: r, canObserve: map[uint64]bool{}}
		affs := map[string]*affiliation.Affiliation{}
		for _, req := range list {
			if f.Status != "" && req.Status != f.Status {
				continue
			}
			if f.AffiliationID != "" && req.AffiliationID != f.AffiliationID {
				continue
			}
			a, ok := affs[req.AffiliationID]
			if !ok {
				found, err := r.Affiliations.GetByID(ctx, req.AffiliationID)
				switch {
				case err == nil:
					a = found
				case !errors.Is(err, gorm.ErrRecordNotFound):
					return err
				}
				affs[req.AffiliationID] = a
			}
			v, err := rv.build(ctx, req, a)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (u *Usecase) GetRequest(ctx context.Context, id uint64) (*RequestView, error) {
	var out RequestView
	err := u.read(ctx, func(r uow.Repos) error {
		req, err := r.Requests.GetByID(ctx, id)
		if err != nil {
			return notFound(err, "request %d", id)
		}
		a, err := r.Affiliations.GetByID(ctx, req.AffiliationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: affiliation %s of request %d", domain.ErrDataIntegrity, req.AffiliationID, req.ID)
			}
			return err
		}
		rv := &requestViews{r: r, canObserve: map[uint64]bool{}}
		out, err = rv.build(ctx, *req, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Usecase) Observations(ctx context.Context, requestID uint64) ([]ObservationView, error) {
	out := []ObservationView{}
	err := u.read(ctx, func(r uow.Repos) error {
		if _, err := r.Requests.GetByID(ctx, requestID); err != nil {
			return notFound(err, "request %d", requestID)
		}
		list, err := r.Observations.ListByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		for _, o := range list {
			out = append(out, toObservationView(o))
		}
		return nil
	})
	return out, err
}

func (u *Usecase) ObservationCauses(ctx context.Context, observationID uint64) ([]CauseView, error) {
	out := []CauseView{}
	err := u.read(ctx, func(r uow.Repos) error {
		if _, err := r.Observations.GetByID(ctx, observationID); err != nil {
			return notFound(err, "observation %d", observationID)
		}
		selected, err := r.Observations.ListSelectedCauses(ctx, observationID)
		if err != nil {
			return err
		}
		for _, s := range selected {
			v := CauseView{ID: s.CauseID}
			if s.Cause != nil {
				v.Label = s.Cause.Label
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (u *Usecase) RequestHistory(ctx context.Context, requestID uint64) ([]request.History, error) {
	out := []request.History{}
	err := u.read(ctx, func(r uow.Repos) error {
		if _, err := r.Requests.GetByID(ctx, requestID); err != nil {
			return notFound(err, "request %d", requestID)
		}
		list, err := r.Requests.ListHistory(ctx, requestID)
		if err == nil && list != nil {
			out = list
		}
		return err
	})
	return out, err
}

func (u *Usecase) ValidationHistory(ctx context.Context, resultID uint64) (*ValidationHistoryView, error) {
	var out ValidationHistoryView
	err := u.read(ctx, func(r uow.Repos) error {
		res, err := r.Validations.GetResultByID(ctx, resultID)
		if err != nil {
			return notFound(err, "validation result %d", resultID)
		}
		hist, err := r.Validations.ListHistory(ctx, res.ID)
		if err != nil {
			return err
		}
		out.Result = toResultView(*res)
		out.Attempts = make([]AttemptView, 0, len(hist))
		for _, h := range hist {
			out.Attempts = append(out.Attempts, toAttemptView(h))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Usecase) ProviderResponse(ctx context.Context, id uint64) (*validation.ProviderResponse, error) {
	var out *validation.ProviderResponse
	err := u.read(ctx, func(r uow.Repos) error {
		pr, err := r.Validations.GetProviderResponse(ctx, id)
		if err != nil {
			return notFound(err, "provider response %d", id)
		}
		out = pr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
