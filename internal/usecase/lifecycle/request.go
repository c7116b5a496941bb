package lifecycle

import (
	"context"
	"fmt"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
)

// ResolveRequest is the manual override: it finalizes the request whatever its
// pending observations.
func (u *Usecase) ResolveRequest(ctx context.Context, in ResolveRequestInput) (*RequestDTO, error) {
	actor, err := requireActor(in.Actor)
	if err != nil {
		return nil, err
	}
	if in.Status != request.StatusApproved && in.Status != request.StatusRejected {
		return nil, fmt.Errorf("%w: status must be approved or rejected", domain.ErrInvalidInput)
	}

	var dto *RequestDTO
	err = u.uow.WithinRequestTx(ctx, in.RequestID, func(r uow.Repos, req *request.AffiliationRequest) error {
		if err := guardOpen(req); err != nil {
			return err
		}
		prev := req.Status
		if err := u.moveRequest(ctx, r, req, in.Status, actor); err != nil {
			return err
		}
		if err := u.appendHistory(ctx, r, req.ID, request.EventStatusChange,
			fmt.Sprintf("Request manually reviewed and set to %s", in.Status),
			ptr(prev), ptr(in.Status), actor); err != nil {
			return err
		}
		dto = toRequestDTO(req)
		return nil
	})
	if err != nil {
		return nil, notFound(err, "request %d", in.RequestID)
	}
	return dto, nil
}
