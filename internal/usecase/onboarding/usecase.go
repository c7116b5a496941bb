// Package onboarding walks an affiliation through its onboarding steps and opens
// the review request the lifecycle engine works on.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/pkg/id"
)

const (
	moduleName = "usecase.onboarding"

	// stepProviderCode tags provider responses recorded by onboarding steps.
	stepProviderCode = "SIMULATOR_PROVIDER"
	documentTypeRUC  = "RUC"
)

// Ingester hands provider results to the lifecycle engine.
type Ingester interface {
	IngestValidationOutcome(ctx context.Context, in lifecycle.IngestInput) (*lifecycle.IngestDTO, error)
}

type Usecase struct {
	uow      uow.UnitOfWork
	provider provider.Provider
	ingester Ingester
	timeout  time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

type Option func(*Usecase)

func WithProviderTimeout(d time.Duration) Option { return func(u *Usecase) { u.timeout = d } }
func WithLogger(l logrus.FieldLogger) Option     { return func(u *Usecase) { u.log = l } }
func WithClock(now func() time.Time) Option      { return func(u *Usecase) { u.now = now } }

func NewUsecase(tx uow.UnitOfWork, p provider.Provider, ing Ingester, opts ...Option) *Usecase {
	u := &Usecase{
		uow:      tx,
		provider: p,
		ingester: ing,
		timeout:  5 * time.Second,
		log:      logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    id.NewID32,
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

func actorOr(actor, fallback string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return fallback
}

func strp[T ~string](v T) *string {
	s := string(v)
	return &s
}

// loadOpen returns the affiliation, refusing one that already reached a final
// status.
func loadOpen(ctx context.Context, r uow.Repos, affiliationID string) (*affiliation.Affiliation, error) {
	a, err := r.Affiliations.GetByID(ctx, affiliationID)
	if err != nil {
		return nil, notFound(err, "affiliation %s", affiliationID)
	}
	if a.Status == affiliation.StatusApproved || a.Status == affiliation.StatusRejected {
		return nil, fmt.Errorf("%w: affiliation %s is %s", domain.ErrAlreadyFinalized, a.ID, a.Status)
	}
	return a, nil
}

func (u *Usecase) CreateAffiliation(ctx context.Context, in CreateAffiliationInput) (*AffiliationDTO, error) {
	name := strings.TrimSpace(in.BusinessName)
	ruc := strings.TrimSpace(in.RUC)
	if name == "" || ruc == "" || in.ProductID == 0 || in.ChannelID == 0 {
		return nil, fmt.Errorf("%w: business name, ruc, product and channel are required", domain.ErrInvalidInput)
	}
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		customerID = id.NewCustomerID()
	}

	a := &affiliation.Affiliation{
		ID:           u.newID(),
		CustomerID:   customerID,
		ProductID:    in.ProductID,
		ChannelID:    in.ChannelID,
		RUC:          ruc,
		BusinessName: name,
		Status:       affiliation.StatusPending,
		CurrentStep:  0,
		CreatedBy:    actorOr(in.Actor, domain.SystemActor),
	}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if _, err := r.Products.GetByID(ctx, in.ProductID); err != nil {
			return notFound(err, "product %d", in.ProductID)
		}
		return r.Affiliations.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return toAffiliationDTO(a), nil
}

type stepResult struct {
	Status    StepOutcome `json:"status"`
	Details   string      `json:"details"`
	Simulated bool        `json:"simulated"`
}

type stepPayload struct {
	TransactionID  string     `json:"transactionId"`
	ValidationCode string     `json:"validationCode"`
	Timestamp      time.Time  `json:"timestamp"`
	Result         stepResult `json:"result"`
	Provider       string     `json:"provider"`
}

// RunStepValidation records the outcome of one onboarding check and moves the
// affiliation to NextStep. A NextStep of zero advances by one.
func (u *Usecase) RunStepValidation(ctx context.Context, in StepValidationInput) (*StepValidationDTO, error) {
	status, ok := in.Outcome.ValidationStatus()
	if !ok {
		return nil, fmt.Errorf("%w: outcome must be approved, rejected or observed", domain.ErrInvalidInput)
	}
	code := strings.TrimSpace(in.Code)
	if code == "" || in.NextStep < 0 {
		return nil, fmt.Errorf("%w: code is required and next step cannot be negative", domain.ErrInvalidInput)
	}
	actor := actorOr(in.Actor, domain.SystemActor)

	payload := stepPayload{
		TransactionID:  id.NewTransactionID("sim"),
		ValidationCode: code,
		Timestamp:      u.now(),
		Result:         stepResult{Status: in.Outcome, Details: in.Comment, Simulated: true},
		Provider:       stepProviderCode,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var dto *StepValidationDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		a, err := loadOpen(ctx, r, in.AffiliationID)
		if err != nil {
			return err
		}
		t, err := r.Catalog.GetTypeByCode(ctx, code)
		if err != nil {
			return integrity(err, "observation type for code %s", code)
		}

		pr := &validation.ProviderResponse{
			ProviderCode:   stepProviderCode,
			ValidationCode: code,
			DocumentNumber: a.RUC,
			DocumentType:   documentTypeRUC,
			ProductID:      a.ProductID,
			ChannelID:      a.ChannelID,
			Status:         provider.StatusSuccess,
			ResponseJSON:   string(raw),
		}
		if err := r.Validations.CreateProviderResponse(ctx, pr); err != nil {
			return err
		}

		res, err := r.Validations.GetResult(ctx, a.ID, t.ID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			res = &validation.Result{AffiliationID: a.ID, ObservationTypeID: t.ID, Code: t.Code, Status: status, Comment: in.Comment}
			err = r.Validations.CreateResult(ctx, res)
		case err == nil:
			res.Status, res.Comment = status, in.Comment
			err = r.Validations.SaveResult(ctx, res)
		}
		if err != nil {
			return err
		}

		n, err := r.Validations.NextAttempt(ctx, res.ID)
		if err != nil {
			return err
		}
		err = r.Validations.AppendHistory(ctx, &validation.History{
			ValidationResultID: res.ID,
			ProviderResponseID: &pr.ID,
			AttemptNumber:      n,
			Status:             status,
			Comment:            in.Comment,
			TriggeredBy:        actor,
		})
		if err != nil {
			return err
		}

		step := in.NextStep
		if step == 0 {
			step = a.CurrentStep + 1
		}
		if err := r.Affiliations.UpdateStep(ctx, a.ID, step); err != nil {
			return err
		}
		dto = &StepValidationDTO{
			AffiliationID:      a.ID,
			ResultID:           res.ID,
			Code:               t.Code,
			Status:             status,
			AttemptNumber:      n,
			ProviderResponseID: pr.ID,
			CurrentStep:        step,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (u *Usecase) history(ctx context.Context, r uow.Repos, requestID uint64, ev request.EventType, details string, prev *string, next request.Status, by string) error {
	return r.Requests.AppendHistory(ctx, &request.History{
		AffiliationRequestID: requestID,
		EventType:            ev,
		Details:              details,
		PreviousStatus:       prev,
		NewStatus:            strp(next),
		ChangedBy:            by,
		ChangedAt:            u.now(),
	})
}

// conclude moves a request opened by finalize straight to a final status.
func (u *Usecase) conclude(ctx context.Context, r uow.Repos, req *request.AffiliationRequest, next request.Status, details string) error {
	prev := req.Status
	if !domain.CanTransition(prev, next) {
		return fmt.Errorf("%w: request %d cannot move from %s to %s", domain.ErrInvalidInput, req.ID, prev, next)
	}
	req.MarkReviewed(next, domain.SystemActor, u.now())
	if err := r.Requests.Save(ctx, req); err != nil {
		return err
	}
	return u.history(ctx, r, req.ID, request.EventStatusChange, details, strp(prev), next, domain.SystemActor)
}

// raise opens one pending system observation per observed result.
func raise(ctx context.Context, r uow.Repos, requestID uint64, observed []validation.Result) ([]uint64, error) {
	ids := make([]uint64, 0, len(observed))
	for _, res := range observed {
		t, err := r.Catalog.GetTypeByCode(ctx, res.Code)
		if err != nil {
			return nil, integrity(err, "observation type for code %s", res.Code)
		}
		o := &observation.Observation{
			AffiliationRequestID: requestID,
			ObservationTypeID:    t.ID,
			Status:               observation.StatusPending,
			CreatedBy:            domain.SystemActor,
		}
		if c := strings.TrimSpace(res.Comment); c != "" {
			o.Comment = &c
		}
		if err := r.Observations.Create(ctx, o); err != nil {
			return nil, err
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func resultCodes(results []validation.Result) string {
	codes := make([]string, 0, len(results))
	for _, res := range results {
		codes = append(codes, res.Code)
	}
	return strings.Join(codes, ", ")
}

// FinalizeAffiliation closes onboarding by opening the affiliation's review
// request. Failed results reject it, observed results leave it observed with one
// pending observation each, and a clean run is approved or queued for manual
// review by the product policy. The affiliation mirrors the request.
func (u *Usecase) FinalizeAffiliation(ctx context.Context, affiliationID, actor string) (*FinalizeDTO, error) {
	actor = actorOr(actor, domain.SystemActor)

	var dto *FinalizeDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		a, err := loadOpen(ctx, r, affiliationID)
		if err != nil {
			return err
		}
		open, err := r.Requests.GetOpenByAffiliationID(ctx, a.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: affiliation %s already has open request %d", domain.ErrInvalidInput, a.ID, open.ID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		cfg, err := r.Products.GetConfigByProduct(ctx, a.ProductID)
		if err != nil {
			return integrity(err, "request config of product %d", a.ProductID)
		}
		failed, err := r.Validations.ListResultsByStatus(ctx, a.ID, validation.StatusFailed)
		if err != nil {
			return err
		}
		observed, err := r.Validations.ListResultsByStatus(ctx, a.ID, validation.StatusObserved)
		if err != nil {
			return err
		}

		req := &request.AffiliationRequest{
			AffiliationID:   a.ID,
			RequestConfigID: cfg.ID,
			Status:          request.StatusPending,
			CreatedBy:       actor,
		}
		details := "Request created for manual review."
		if len(failed) == 0 && len(observed) > 0 {
			req.Status = request.StatusObserved
			comments := make([]string, 0, len(observed))
			for _, res := range observed {
				comments = append(comments, res.Comment)
			}
			details = "Request created from observations: " + strings.Join(comments, "; ")
		}
		if err := r.Requests.Create(ctx, req); err != nil {
			return err
		}
		if err := u.history(ctx, r, req.ID, request.EventRequestCreated, details, nil, req.Status, actor); err != nil {
			return err
		}

		dto = &FinalizeDTO{AffiliationID: a.ID, RequestID: &req.ID}
		switch {
		case len(failed) > 0:
			err = u.conclude(ctx, r, req, request.StatusRejected,
				"Request automatically rejected due to failed validations: "+resultCodes(failed))
		case len(observed) > 0:
			dto.ObservationIDs, err = raise(ctx, r, req.ID, observed)
		case cfg.AutoApprove:
			err = u.conclude(ctx, r, req, request.StatusApproved,
				"Request automatically approved based on product configuration.")
		}
		if err != nil {
			return err
		}

		status := domain.AffiliationStatusFor(req.Status)
		if err := r.Affiliations.UpdateStatus(ctx, a.ID, status); err != nil {
			return err
		}
		dto.AffiliationStatus = status
		dto.RequestStatus = &req.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// OpenRequest returns the affiliation's open request, creating a pending one
// when there is none.
func (u *Usecase) OpenRequest(ctx context.Context, affiliationID, actor string) (*OpenRequestDTO, error) {
	actor = actorOr(actor, domain.SystemActor)

	var dto *OpenRequestDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		a, err := loadOpen(ctx, r, affiliationID)
		if err != nil {
			return err
		}
		open, err := r.Requests.GetOpenByAffiliationID(ctx, a.ID)
		if err == nil {
			dto = &OpenRequestDTO{RequestID: open.ID, AffiliationID: a.ID, Status: open.Status}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		cfg, err := r.Products.GetConfigByProduct(ctx, a.ProductID)
		if err != nil {
			return integrity(err, "request config of product %d", a.ProductID)
		}
		req := &request.AffiliationRequest{
			AffiliationID:   a.ID,
			RequestConfigID: cfg.ID,
			Status:          request.StatusPending,
			CreatedBy:       actor,
		}
		if err := r.Requests.Create(ctx, req); err != nil {
			return err
		}
		if err := u.history(ctx, r, req.ID, request.EventRequestCreated, "Request created for validation.", nil, req.Status, actor); err != nil {
			return err
		}
		dto = &OpenRequestDTO{RequestID: req.ID, AffiliationID: a.ID, Status: req.Status, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// Submit runs every active system check of the affiliation's product and hands
// the batch to the lifecycle engine. Provider calls happen outside any
// transaction.
func (u *Usecase) Submit(ctx context.Context, in SubmitInput) (*SubmitDTO, error) {
	if u.provider == nil || u.ingester == nil {
		return nil, fmt.Errorf("%w: no validation provider configured", domain.ErrProviderFailure)
	}
	open, err := u.OpenRequest(ctx, in.AffiliationID, in.Actor)
	if err != nil {
		return nil, err
	}

	var (
		a     *affiliation.Affiliation
		types []observation.Type
	)
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		if a, err = r.Affiliations.GetByID(ctx, in.AffiliationID); err != nil {
			return notFound(err, "affiliation %s", in.AffiliationID)
		}
		kind := observation.KindSystem
		types, err = r.Catalog.ListTypesForProduct(ctx, a.ProductID, &kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: product %d has no active system checks", domain.ErrDataIntegrity, a.ProductID)
	}

	dto := &SubmitDTO{RequestID: open.RequestID}
	results := make([]provider.Result, 0, len(types))
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		check := provider.CheckInput{
			Code:           t.Code,
			DocumentNumber: a.RUC,
			DocumentType:   documentTypeRUC,
			AccountNumber:  in.AccountNumber,
			ProductID:      a.ProductID,
			ChannelID:      a.ChannelID,
		}
		out := provider.Call(ctx, u.provider, check, u.timeout)
		if out.Status == provider.StatusError {
			u.log.WithFields(logrus.Fields{
				"module":     moduleName,
				"request_id": open.RequestID,
				"code":       t.Code,
				"error_code": out.ErrorCode,
			}).Info("check returned an error outcome")
		}
		results = append(results, provider.Result{Input: check, Outcome: out})
		dto.Checks = append(dto.Checks, t.Code)
	}

	outcome, err := u.ingester.IngestValidationOutcome(ctx, lifecycle.IngestInput{
		RequestID: open.RequestID,
		Results:   results,
		Actor:     in.Actor,
	})
	if err != nil {
		logging.LogError(u.log, moduleName, "Submit", "ingest validation outcome", dto, err)
		return nil, err
	}
	dto.Outcome = outcome
	return dto, nil
}
