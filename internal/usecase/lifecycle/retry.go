package lifecycle

import (
	"context"
	"fmt"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
)

// RetryKey is the lock key guarding retries of one observation.
func RetryKey(observationID uint64) string {
	return fmt.Sprintf("lock:observation:%d:retry", observationID)
}

// retryTarget is what the read phase of a retry resolves.
type retryTarget struct {
	requestID uint64
	typ       *observation.Type
	input     provider.CheckInput
}

// RetryObservation re-runs the check behind a system observation. A passing
// check approves the observation; a failing one reports ErrProviderFailure and
// promotes nothing.
func (u *Usecase) RetryObservation(ctx context.Context, in RetryObservationInput) (*RetryDTO, error) {
	actor, err := requireActor(in.Actor)
	if err != nil {
		return nil, err
	}
	if u.provider == nil {
		return nil, fmt.Errorf("%w: no validation provider configured", domain.ErrProviderFailure)
	}

	target, err := u.retryTarget(ctx, in.ObservationID)
	if err != nil {
		return nil, err
	}

	if u.locker != nil {
		release, err := u.locker.Lock(ctx, RetryKey(in.ObservationID))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// outside any transaction so the request row is not held during the call
	outcome := provider.Call(ctx, u.provider, target.input, u.timeout)
	passed := outcome.Status == provider.StatusSuccess
	var failure error
	if !passed {
		msg := outcome.ErrorMessage
		if msg == "" {
			msg = "Validation retry resulted in a failure."
		}
		failure = fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
		logging.LogError(u.log, moduleName, "RetryObservation", "provider retry failed",
			map[string]any{"observation_id": in.ObservationID, "code": target.input.Code, "error_code": outcome.ErrorCode}, failure)
		if !u.auditFailures {
			return nil, failure
		}
	}

	var dto *RetryDTO
	err = u.uow.WithinRequestTx(ctx, target.requestID, func(r uow.Repos, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		o, err := r.Observations.GetByID(ctx, in.ObservationID)
		if err != nil {
			return notFound(err, "observation %d", in.ObservationID)
		}
		if err := guardPending(o); err != nil {
			return err
		}
		res, err := r.Validations.GetResult(ctx, req.AffiliationID, o.ObservationTypeID)
		if err != nil {
			return integrity(err, "validation result for observation %d", o.ID)
		}

		pr := validation.NewProviderResponse(provider.Result{Input: target.input, Outcome: outcome})
		if err := r.Validations.CreateProviderResponse(ctx, pr); err != nil {
			return err
		}
		comment := fmt.Sprintf("Retry attempt via observation %d", o.ID)
		if !passed {
			// audit mode: the result follows its latest attempt, the observation stays pending
			_, err := u.setResult(ctx, r, res, validation.StatusFailed, &pr.ID, comment, actor)
			return err
		}

		attempt, err := u.setResult(ctx, r, res, validation.StatusPassed, &pr.ID, comment, actor)
		if err != nil {
			return err
		}
		prev := o.Status
		o.MarkReviewed(observation.StatusApproved, actor, u.now())
		if err := r.Observations.Save(ctx, o); err != nil {
			return err
		}
		if err := u.appendHistory(ctx, r, req.ID, request.EventAutomaticObservationRetry,
			fmt.Sprintf("Observation ID %d approved after successful retry of %s", o.ID, target.typ.Code),
			ptr(prev), ptr(observation.StatusApproved), actor); err != nil {
			return err
		}
		if _, err := u.settle(ctx, r, req); err != nil {
			return err
		}
		dto = &RetryDTO{
			Observation:        *toObservationDTO(o, target.typ, nil, req.Status),
			ProviderResponseID: pr.ID,
			AttemptNumber:      attempt,
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, "request %d", target.requestID)
	}
	if failure != nil {
		return nil, failure
	}
	return dto, nil
}

// retryTarget validates that the observation can be retried and builds the
// provider input from its affiliation.
func (u *Usecase) retryTarget(ctx context.Context, observationID uint64) (*retryTarget, error) {
	var t *retryTarget
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		o, err := r.Observations.GetByID(ctx, observationID)
		if err != nil {
			return notFound(err, "observation %d", observationID)
		}
		typ := o.Type
		if typ == nil {
			if typ, err = r.Catalog.GetType(ctx, o.ObservationTypeID); err != nil {
				return integrity(err, "observation type %d", o.ObservationTypeID)
			}
		}
		if typ.Kind != observation.KindSystem {
			return fmt.Errorf("%w: observation %d is %s", domain.ErrNotRetriable, o.ID, typ.Kind)
		}
		req, err := r.Requests.GetByID(ctx, o.AffiliationRequestID)
		if err != nil {
			return notFound(err, "request %d", o.AffiliationRequestID)
		}
		if err := guardOpen(req); err != nil {
			return err
		}
		if err := guardPending(o); err != nil {
			return err
		}
		aff, err := r.Affiliations.GetByID(ctx, req.AffiliationID)
		if err != nil {
			return notFound(err, "affiliation %s", req.AffiliationID)
		}
		if _, err := r.Validations.GetResult(ctx, aff.ID, typ.ID); err != nil {
			return integrity(err, "validation result for %s on affiliation %s", typ.Code, aff.ID)
		}
		t = &retryTarget{
			requestID: req.ID,
			typ:       typ,
			input: provider.CheckInput{
				Code:           typ.Code,
				DocumentNumber: aff.RUC,
				DocumentType:   "RUC",
				ProductID:      aff.ProductID,
				ChannelID:      aff.ChannelID,
			},
		}
		return nil
	})
	return t, err
}
