package http

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/query"
)

type RequestHandler struct {
	uc *lifecycle.Usecase
	q  *query.Usecase
}

func NewRequestHandler(uc *lifecycle.Usecase, q *query.Usecase) *RequestHandler {
	return &RequestHandler{uc: uc, q: q}
}

type checkResultReq struct {
	Code           string          `json:"validation_code" validate:"required,checkcode"`
	DocumentNumber string          `json:"document_number"`
	DocumentType   string          `json:"document_type"`
	AccountNumber  string          `json:"account_number"`
	ProductID      uint64          `json:"product_id"`
	ChannelID      uint64          `json:"channel_id"`
	ProviderCode   string          `json:"provider_code"`
	Status         string          `json:"status"          validate:"required,oneof=success error"`
	Response       json.RawMessage `json:"response"`
	ErrorMessage   string          `json:"error_message"`
	ErrorCode      string          `json:"error_code"`
}

type ingestReq struct {
	Results []checkResultReq `json:"results" validate:"required,min=1,dive"`
}

type addObservationReq struct {
	ObservationTypeID uint64   `json:"observation_type_id" validate:"required"`
	CauseIDs          []uint64 `json:"cause_ids"`
	Comment           string   `json:"comment"             validate:"max=2000"`
}

type resolveRequestReq struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func (r checkResultReq) toResult() provider.Result {
	return provider.Result{
		Input: provider.CheckInput{
			Code:           r.Code,
			DocumentNumber: r.DocumentNumber,
			DocumentType:   r.DocumentType,
			AccountNumber:  r.AccountNumber,
			ProductID:      r.ProductID,
			ChannelID:      r.ChannelID,
		},
		Outcome: provider.Outcome{
			ProviderCode: r.ProviderCode,
			Status:       provider.Status(r.Status),
			ResponseJSON: string(r.Response),
			ErrorMessage: r.ErrorMessage,
			ErrorCode:    r.ErrorCode,
		},
	}
}

func (h *RequestHandler) List(c echo.Context) error {
	f := query.RequestFilter{
		Status:        request.Status(c.QueryParam("status")),
		AffiliationID: c.QueryParam("affiliation_id"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status filter"})
	}
	list, err := h.q.ListRequests(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *RequestHandler) Get(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	v, err := h.q.GetRequest(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *RequestHandler) History(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	list, err := h.q.RequestHistory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *RequestHandler) Observations(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	list, err := h.q.Observations(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Ingest records externally produced check results against the request.
func (h *RequestHandler) Ingest(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	var req ingestReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	results := make([]provider.Result, 0, len(req.Results))
	for _, r := range req.Results {
		results = append(results, r.toResult())
	}
	dto, err := h.uc.IngestValidationOutcome(c.Request().Context(), lifecycle.IngestInput{
		RequestID: id,
		Results:   results,
		Actor:     actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *RequestHandler) AddObservation(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	var req addObservationReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.AddManualObservation(c.Request().Context(), lifecycle.AddObservationInput{
		RequestID:         id,
		ObservationTypeID: req.ObservationTypeID,
		CauseIDs:          req.CauseIDs,
		Comment:           req.Comment,
		Actor:             actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *RequestHandler) Resolve(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	var req resolveRequestReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.ResolveRequest(c.Request().Context(), lifecycle.ResolveRequestInput{
		RequestID: id,
		Status:    request.Status(req.Status),
		Actor:     actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
