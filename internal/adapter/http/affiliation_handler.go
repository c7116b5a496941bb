package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/onboarding"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/query"
)

type AffiliationHandler struct {
	uc *onboarding.Usecase
	q  *query.Usecase
}

func NewAffiliationHandler(uc *onboarding.Usecase, q *query.Usecase) *AffiliationHandler {
	return &AffiliationHandler{uc: uc, q: q}
}

type createAffiliationReq struct {
	BusinessName string `json:"business_name" validate:"required,max=255"`
	RUC          string `json:"ruc"           validate:"required,document"`
	ProductID    uint64 `json:"product_id"    validate:"required"`
	ChannelID    uint64 `json:"channel_id"    validate:"required"`
	CustomerID   string `json:"customer_id"   validate:"max=64"`
}

type stepValidationReq struct {
	Code     string `json:"validation_code" validate:"required,checkcode"`
	Status   string `json:"status"          validate:"required,oneof=approved rejected observed"`
	Comment  string `json:"comment"`
	NextStep int    `json:"next_step"       validate:"gte=0"`
}

type submitReq struct {
	AccountNumber string `json:"account_number" validate:"max=64"`
}

func (h *AffiliationHandler) Create(c echo.Context) error {
	var req createAffiliationReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.CreateAffiliation(c.Request().Context(), onboarding.CreateAffiliationInput{
		BusinessName: req.BusinessName,
		RUC:          req.RUC,
		ProductID:    req.ProductID,
		ChannelID:    req.ChannelID,
		CustomerID:   req.CustomerID,
		Actor:        actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *AffiliationHandler) List(c echo.Context) error {
	list, err := h.q.ListAffiliations(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AffiliationHandler) Get(c echo.Context) error {
	v, err := h.q.GetAffiliation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AffiliationHandler) RunStepValidation(c echo.Context) error {
	var req stepValidationReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.RunStepValidation(c.Request().Context(), onboarding.StepValidationInput{
		AffiliationID: c.Param("id"),
		Code:          req.Code,
		Outcome:       onboarding.StepOutcome(req.Status),
		Comment:       req.Comment,
		NextStep:      req.NextStep,
		Actor:         actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *AffiliationHandler) Finalize(c echo.Context) error {
	dto, err := h.uc.FinalizeAffiliation(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AffiliationHandler) Submit(c echo.Context) error {
	var req submitReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Submit(c.Request().Context(), onboarding.SubmitInput{
		AffiliationID: c.Param("id"),
		AccountNumber: req.AccountNumber,
		Actor:         actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
