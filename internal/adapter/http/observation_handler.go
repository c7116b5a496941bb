package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/query"
)

type ObservationHandler struct {
	uc *lifecycle.Usecase
	q  *query.Usecase
}

func NewObservationHandler(uc *lifecycle.Usecase, q *query.Usecase) *ObservationHandler {
	return &ObservationHandler{uc: uc, q: q}
}

type resolveObservationReq struct {
	Status string `json:"status" validate:"required,oneof=approved ignored"`
}

func (h *ObservationHandler) Resolve(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	var req resolveObservationReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.ResolveObservation(c.Request().Context(), lifecycle.ResolveObservationInput{
		ObservationID: id,
		Resolution:    observation.Resolution(req.Status),
		Actor:         actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ObservationHandler) Reject(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	dto, err := h.uc.RejectObservation(c.Request().Context(), lifecycle.RejectObservationInput{
		ObservationID: id,
		Actor:         actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ObservationHandler) Retry(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	dto, err := h.uc.RetryObservation(c.Request().Context(), lifecycle.RetryObservationInput{
		ObservationID: id,
		Actor:         actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ObservationHandler) Causes(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	list, err := h.q.ObservationCauses(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ObservationHandler) ValidationHistory(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	v, err := h.q.ValidationHistory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *ObservationHandler) ProviderResponse(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	v, err := h.q.ProviderResponse(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
