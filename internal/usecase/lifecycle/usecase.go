// Package lifecycle drives affiliation requests and their observations through
// review. Every mutation runs in one request-locked transaction.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
)

const moduleName = "usecase.lifecycle"

// Locker serializes work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

type Usecase struct {
	uow      uow.UnitOfWork
	provider provider.Provider
	locker   Locker
	policy   domain.RiskPolicy
	timeout  time.Duration

	// keep the provider response and failed attempt of a failed retry
	auditFailures bool
	log           logrus.FieldLogger
	now           func() time.Time
}

type Option func(*Usecase)

func WithRiskPolicy(p domain.RiskPolicy) Option  { return func(u *Usecase) { u.policy = p } }
func WithProviderTimeout(d time.Duration) Option { return func(u *Usecase) { u.timeout = d } }
func WithRetryAuditFailures(on bool) Option      { return func(u *Usecase) { u.auditFailures = on } }
func WithLocker(l Locker) Option                 { return func(u *Usecase) { u.locker = l } }
func WithLogger(l logrus.FieldLogger) Option     { return func(u *Usecase) { u.log = l } }
func WithClock(now func() time.Time) Option      { return func(u *Usecase) { u.now = now } }

// NewUsecase wires the engine. p is only needed by RetryObservation.
func NewUsecase(tx uow.UnitOfWork, p provider.Provider, opts ...Option) *Usecase {
	u := &Usecase{
		uow:      tx,
		provider: p,
		policy:   domain.DefaultRiskPolicy(),
		timeout:  5 * time.Second,
		log:      logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func integrity(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrDataIntegrity, fmt.Sprintf(format, args...))
	}
	return err
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", fmt.Errorf("%w: actor is required", domain.ErrInvalidInput)
	}
	return actor, nil
}

func ptr[T ~string](v T) *string {
	s := string(v)
	return &s
}

func (u *Usecase) appendHistory(ctx context.Context, r uow.Repos, requestID uint64, ev request.EventType, details string, prev, next *string, by string) error {
	return r.Requests.AppendHistory(ctx, &request.History{
		AffiliationRequestID: requestID,
		EventType:            ev,
		Details:              details,
		PreviousStatus:       prev,
		NewStatus:            next,
		ChangedBy:            by,
		ChangedAt:            u.now(),
	})
}

// moveRequest changes the request status, stamps the reviewer and mirrors the
// status onto the affiliation.
func (u *Usecase) moveRequest(ctx context.Context, r uow.Repos, req *request.AffiliationRequest, next request.Status, by string) error {
	if !domain.CanTransition(req.Status, next) {
		return fmt.Errorf("%w: request %d cannot move from %s to %s", domain.ErrInvalidInput, req.ID, req.Status, next)
	}
	req.MarkReviewed(next, by, u.now())
	if err := r.Requests.Save(ctx, req); err != nil {
		return err
	}
	return r.Affiliations.UpdateStatus(ctx, req.AffiliationID, domain.AffiliationStatusFor(next))
}

// appendAttempt writes the next gapless attempt for res.
func (u *Usecase) appendAttempt(ctx context.Context, r uow.Repos, res *validation.Result, s validation.Status, providerResponseID *uint64, comment, by string) (int, error) {
	n, err := r.Validations.NextAttempt(ctx, res.ID)
	if err != nil {
		return 0, err
	}
	h := &validation.History{
		ValidationResultID: res.ID,
		ProviderResponseID: providerResponseID,
		AttemptNumber:      n,
		Status:             s,
		Comment:            comment,
		TriggeredBy:        by,
	}
	if err := r.Validations.AppendHistory(ctx, h); err != nil {
		return 0, err
	}
	return n, nil
}

// setResult updates an existing result's status and records the attempt.
func (u *Usecase) setResult(ctx context.Context, r uow.Repos, res *validation.Result, s validation.Status, providerResponseID *uint64, comment, by string) (int, error) {
	res.Status = s
	res.Comment = comment
	if err := r.Validations.SaveResult(ctx, res); err != nil {
		return 0, err
	}
	return u.appendAttempt(ctx, r, res, s, providerResponseID, comment, by)
}

// upsertResult creates the result for (affiliation, type) on first sight.
func (u *Usecase) upsertResult(ctx context.Context, r uow.Repos, affiliationID string, t *observation.Type, s validation.Status, providerResponseID *uint64, comment, by string) (*validation.Result, error) {
	res, err := r.Validations.GetResult(ctx, affiliationID, t.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		res = &validation.Result{
			AffiliationID:     affiliationID,
			ObservationTypeID: t.ID,
			Code:              t.Code,
			Status:            s,
			Comment:           comment,
		}
		if err := r.Validations.CreateResult(ctx, res); err != nil {
			return nil, err
		}
		_, err = u.appendAttempt(ctx, r, res, s, providerResponseID, comment, by)
		return res, err
	case err != nil:
		return nil, err
	}
	_, err = u.setResult(ctx, r, res, s, providerResponseID, comment, by)
	return res, err
}

// settle runs the zero-pending cascade: once nothing is pending the request takes
// the status its product policy dictates. Reports whether the request moved.
func (u *Usecase) settle(ctx context.Context, r uow.Repos, req *request.AffiliationRequest) (bool, error) {
	pending, err := r.Observations.CountPending(ctx, req.ID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}
	cfg, err := r.Products.GetConfig(ctx, req.RequestConfigID)
	if err != nil {
		return false, integrity(err, "request config %d of request %d", req.RequestConfigID, req.ID)
	}
	next := domain.StatusWhenClear(cfg.AutoApprove)
	if next == req.Status {
		return false, nil
	}
	prev := req.Status
	if err := u.moveRequest(ctx, r, req, next, domain.SystemActor); err != nil {
		return false, err
	}
	err = u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
		"All observations resolved. Status updated automatically.",
		ptr(prev), ptr(next), domain.SystemActor)
	return err == nil, err
}

// withObservation resolves the observation's request, locks it, and reads the
// observation again under that lock before handing both to fn.
func (u *Usecase) withObservation(ctx context.Context, observationID uint64, fn func(r uow.Repos, o *observation.Observation, req *request.AffiliationRequest) error) error {
	var requestID uint64
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		o, err := r.Observations.GetByID(ctx, observationID)
		if err != nil {
			return notFound(err, "observation %d", observationID)
		}
		requestID = o.AffiliationRequestID
		return nil
	})
	if err != nil {
		return err
	}
	err = u.uow.WithinRequestTx(ctx, requestID, func(r uow.Repos, req *request.AffiliationRequest) error {
		o, err := r.Observations.GetByID(ctx, observationID)
		if err != nil {
			return notFound(err, "observation %d", observationID)
		}
		if o.AffiliationRequestID != req.ID {
			return fmt.Errorf("%w: observation %d moved off request %d", domain.ErrDataIntegrity, o.ID, req.ID)
		}
		if o.Type == nil {
			t, err := r.Catalog.GetType(ctx, o.ObservationTypeID)
			if err != nil {
				return integrity(err, "observation type %d", o.ObservationTypeID)
			}
			o.Type = t
		}
		return fn(r, o, req)
	})
	return integrity(err, "request %d of observation %d", requestID, observationID)
}

func guardOpen(req *request.AffiliationRequest) error {
	if req.Status.Terminal() {
		return fmt.Errorf("%w: request %d is %s", domain.ErrAlreadyFinalized, req.ID, req.Status)
	}
	return nil
}

func guardPending(o *observation.Observation) error {
	if o.Status != observation.StatusPending {
		return fmt.Errorf("%w: observation %d is %s", domain.ErrObservationClosed, o.ID, o.Status)
	}
	return nil
}
