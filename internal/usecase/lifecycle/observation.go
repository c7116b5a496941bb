package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

// AddManualObservation raises a reviewer observation and forces the request to
// observed.
func (u *Usecase) AddManualObservation(ctx context.Context, in AddObservationInput) (*ObservationDTO, error) {
	actor, err := requireActor(in.Actor)
	if err != nil {
		return nil, err
	}
	causeIDs := distinct(in.CauseIDs)

	var dto *ObservationDTO
	err = u.uow.WithinRequestTx(ctx, in.RequestID, func(r uow.Repos, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		t, err := r.Catalog.GetType(ctx, in.ObservationTypeID)
		if err != nil {
			return notFound(err, "observation type %d", in.ObservationTypeID)
		}
		if err := checkCauses(ctx, r, t, causeIDs); err != nil {
			return err
		}

		o := &observation.Observation{
			AffiliationRequestID: req.ID,
			ObservationTypeID:    t.ID,
			Status:               observation.StatusPending,
			CreatedBy:            actor,
		}
		comment := strings.TrimSpace(in.Comment)
		if comment != "" {
			o.Comment = &comment
		}
		if err := r.Observations.Create(ctx, o); err != nil {
			return err
		}
		if err := r.Observations.AddSelectedCauses(ctx, o.ID, causeIDs); err != nil {
			return err
		}

		prev := req.Status
		if err := u.moveRequest(ctx, r, req, request.StatusObserved, actor); err != nil {
			return err
		}
		if comment == "" {
			comment = "No comment"
		}
		if err := u.appendHistory(ctx, r, req.ID, request.EventObservationUpdate,
			"Manual observation added: "+comment, ptr(prev), ptr(request.StatusObserved), actor); err != nil {
			return err
		}
		dto = toObservationDTO(o, t, causeIDs, req.Status)
		return nil
	})
	if err != nil {
		return nil, notFound(err, "request %d", in.RequestID)
	}
	return dto, nil
}

// ResolveObservation closes a pending observation as approved or ignored and runs
// the zero-pending cascade.
func (u *Usecase) ResolveObservation(ctx context.Context, in ResolveObservationInput) (*ObservationDTO, error) {
	actor, err := requireActor(in.Actor)
	if err != nil {
		return nil, err
	}
	if !in.Resolution.Valid() {
		return nil, fmt.Errorf("%w: resolution must be approved or ignored", domain.ErrInvalidInput)
	}
	next := in.Resolution.Status()

	var dto *ObservationDTO
	err = u.withObservation(ctx, in.ObservationID, func(r uow.Repos, o *observation.Observation, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		if err := guardPending(o); err != nil {
			return err
		}

		prev := o.Status
		o.MarkReviewed(next, actor, u.now())
		if err := r.Observations.Save(ctx, o); err != nil {
			return err
		}
		if o.Type.Kind == observation.KindSystem {
			comment := fmt.Sprintf("Observation resolved as '%s' by supervisor.", next)
			if err := u.syncSystemResult(ctx, r, req, o, domain.ValidationStatusForResolution(next), comment, actor); err != nil {
				return err
			}
		}
		if err := u.appendHistory(ctx, r, req.ID, request.EventObservationResolved,
			fmt.Sprintf("Observation ID %d status changed to %s", o.ID, next),
			ptr(prev), ptr(next), actor); err != nil {
			return err
		}
		if _, err := u.settle(ctx, r, req); err != nil {
			return err
		}
		dto = toObservationDTO(o, o.Type, nil, req.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// RejectObservation closes a pending observation as rejected. The request stays
// observed until a reviewer resolves it.
func (u *Usecase) RejectObservation(ctx context.Context, in RejectObservationInput) (*ObservationDTO, error) {
	actor, err := requireActor(in.Actor)
	if err != nil {
		return nil, err
	}

	var dto *ObservationDTO
	err = u.withObservation(ctx, in.ObservationID, func(r uow.Repos, o *observation.Observation, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		if err := guardPending(o); err != nil {
			return err
		}

		prev := o.Status
		o.MarkReviewed(observation.StatusRejected, actor, u.now())
		if err := r.Observations.Save(ctx, o); err != nil {
			return err
		}
		if o.Type.Kind == observation.KindSystem {
			comment := fmt.Sprintf("Observation resolved as '%s' by supervisor.", observation.StatusRejected)
			if err := u.syncSystemResult(ctx, r, req, o, validation.StatusFailed, comment, actor); err != nil {
				return err
			}
		}
		if err := u.appendHistory(ctx, r, req.ID, request.EventObservationResolved,
			fmt.Sprintf("Observation ID %d status changed to %s", o.ID, observation.StatusRejected),
			ptr(prev), ptr(observation.StatusRejected), actor); err != nil {
			return err
		}
		dto = toObservationDTO(o, o.Type, nil, req.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// syncSystemResult moves the validation result behind a system observation. A
// missing result is logged and skipped.
func (u *Usecase) syncSystemResult(ctx context.Context, r uow.Repos, req *request.AffiliationRequest, o *observation.Observation, s validation.Status, comment, actor string) error {
	res, err := r.Validations.GetResult(ctx, req.AffiliationID, o.ObservationTypeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u.log.WithFields(logrus.Fields{
			"module":         moduleName,
			"observation_id": o.ID,
			"affiliation_id": req.AffiliationID,
		}).Warn("system observation has no validation result; skipping result update")
		return nil
	}
	if err != nil {
		return err
	}
	_, err = u.setResult(ctx, r, res, s, nil, comment, actor)
	return err
}

// checkCauses verifies every cause exists, is active and belongs to t.
func checkCauses(ctx context.Context, r uow.Repos, t *observation.Type, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	causes, err := r.Catalog.GetCauses(ctx, ids)
	if err != nil {
		return err
	}
	found := map[uint64]observation.Cause{}
	for _, c := range causes {
		found[c.ID] = c
	}
	for _, id := range ids {
		c, ok := found[id]
		if !ok || c.ObservationTypeID != t.ID || !c.IsActive {
			return fmt.Errorf("%w: cause %d does not belong to observation type %s", domain.ErrInvalidInput, id, t.Code)
		}
	}
	return nil
}

func distinct(ids []uint64) []uint64 {
	seen := map[uint64]bool{}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
