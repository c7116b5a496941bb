package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

// IngestValidationOutcome records a batch of provider results against a request
// and decides its next status. Precedence: error, risk flag, auto-approve,
// manual review. The batch commits or rolls back as a whole.
func (u *Usecase) IngestValidationOutcome(ctx context.Context, in IngestInput) (*IngestDTO, error) {
	if len(in.Results) == 0 {
		return nil, fmt.Errorf("%w: at least one result is required", domain.ErrInvalidInput)
	}
	for _, res := range in.Results {
		if strings.TrimSpace(res.Input.Code) == "" || !res.Outcome.Status.Valid() {
			return nil, fmt.Errorf("%w: result needs a code and a success|error status", domain.ErrInvalidInput)
		}
	}
	actor := strings.TrimSpace(in.Actor)
	if actor == "" {
		actor = domain.SystemActor
	}

	var dto *IngestDTO
	err := u.uow.WithinRequestTx(ctx, in.RequestID, func(r uow.Repos, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		aff, err := r.Affiliations.GetByID(ctx, req.AffiliationID)
		if err != nil {
			return integrity(err, "affiliation %s of request %d", req.AffiliationID, req.ID)
		}
		cfg, err := r.Products.GetConfig(ctx, req.RequestConfigID)
		if err != nil {
			return integrity(err, "request config %d", req.RequestConfigID)
		}

		out := &IngestDTO{RequestID: req.ID, PreviousStatus: req.Status}
		types := map[string]*observation.Type{}
		for _, res := range in.Results {
			pr := validation.NewProviderResponse(res)
			if err := r.Validations.CreateProviderResponse(ctx, pr); err != nil {
				return err
			}
			out.ProviderResponseIDs = append(out.ProviderResponseIDs, pr.ID)

			t, err := r.Catalog.GetTypeByCode(ctx, res.Input.Code)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				u.log.WithFields(logrus.Fields{
					"module":     moduleName,
					"request_id": req.ID,
					"code":       res.Input.Code,
				}).Warn("no observation type for check code; validation result not recorded")
				continue
			}
			if err != nil {
				return err
			}
			types[res.Input.Code] = t
			if _, err := u.upsertResult(ctx, r, aff.ID, t, u.policy.ResultStatus(res), &pr.ID, res.Outcome.ErrorMessage, actor); err != nil {
				return err
			}
		}

		pending, err := r.Observations.CountPending(ctx, req.ID)
		if err != nil {
			return err
		}
		d := domain.Decide(in.Results, u.policy, cfg.AutoApprove, req.Status, pending)
		out.Decision = d.Kind.String()
		prev := req.Status

		switch d.Kind {
		case domain.DecideReject:
			if err := u.moveRequest(ctx, r, req, d.Next, domain.SystemActor); err != nil {
				return err
			}
			err = u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
				"Request automatically rejected due to validation errors: "+strings.Join(domain.Codes(d.Failing), ", "),
				ptr(prev), ptr(d.Next), domain.SystemActor)

		case domain.DecideObserve:
			open, perr := pendingTypes(ctx, r, req.ID)
			if perr != nil {
				return perr
			}
			for _, res := range d.Flagged {
				t, ok := types[res.Input.Code]
				if !ok {
					return fmt.Errorf("%w: no observation type for code %s", domain.ErrDataIntegrity, res.Input.Code)
				}
				if open[t.ID] {
					continue
				}
				o := &observation.Observation{
					AffiliationRequestID: req.ID,
					ObservationTypeID:    t.ID,
					Status:               observation.StatusPending,
					CreatedBy:            domain.SystemActor,
				}
				if msg := res.Outcome.ErrorMessage; msg != "" {
					o.Comment = &msg
				}
				if err := r.Observations.Create(ctx, o); err != nil {
					return err
				}
				open[t.ID] = true
				out.ObservationIDs = append(out.ObservationIDs, o.ID)
			}
			if err := u.moveRequest(ctx, r, req, d.Next, domain.SystemActor); err != nil {
				return err
			}
			err = u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
				"Request automatically observed due to validation results: "+strings.Join(domain.Codes(d.Flagged), ", "),
				ptr(prev), ptr(d.Next), domain.SystemActor)

		case domain.DecideApprove:
			if err := u.moveRequest(ctx, r, req, d.Next, domain.SystemActor); err != nil {
				return err
			}
			err = u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
				"Request automatically approved based on product configuration.",
				ptr(prev), ptr(d.Next), domain.SystemActor)

		default:
			if d.Next != prev {
				if err := u.moveRequest(ctx, r, req, d.Next, domain.SystemActor); err != nil {
					return err
				}
				err = u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
					"All validations passed. Request returned to pending manual review.",
					ptr(prev), ptr(d.Next), domain.SystemActor)
				break
			}
			details := "All validations passed. Request is pending manual review."
			if pending > 0 {
				details = fmt.Sprintf("All validations passed. Request still has %d pending observation(s).", pending)
			}
			err = u.appendHistory(ctx, r, req.ID, request.EventInfoUpdate, details, nil, nil, domain.SystemActor)
		}
		if err != nil {
			return err
		}

		out.Status = req.Status
		dto = out
		return nil
	})
	if err != nil {
		return nil, notFound(err, "request %d", in.RequestID)
	}
	return dto, nil
}

// pendingTypes is the set of observation types already pending on the request.
func pendingTypes(ctx context.Context, r uow.Repos, requestID uint64) (map[uint64]bool, error) {
	obs, err := r.Observations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	set := map[uint64]bool{}
	for _, o := range obs {
		if o.Status == observation.StatusPending {
			set[o.ObservationTypeID] = true
		}
	}
	return set, nil
}
