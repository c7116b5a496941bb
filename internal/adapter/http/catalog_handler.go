package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/catalog"
)

type CatalogHandler struct{ uc *catalog.Usecase }

func NewCatalogHandler(uc *catalog.Usecase) *CatalogHandler { return &CatalogHandler{uc: uc} }

type addTypeReq struct {
	Code       string   `json:"code"        validate:"required,checkcode"`
	Title      string   `json:"title"       validate:"required,max=255"`
	Label      string   `json:"label"       validate:"max=255"`
	Kind       string   `json:"type"        validate:"required,oneof=manual system"`
	Causes     []string `json:"causes"      validate:"dive,max=255"`
	ProductIDs []uint64 `json:"product_ids"`
}

type autoApproveReq struct {
	AutoApprove *bool `json:"auto_approve" validate:"required"`
}

func (h *CatalogHandler) ListTypes(c echo.Context) error {
	list, err := h.uc.ListTypes(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) GetType(c echo.Context) error {
	t, err := h.uc.ResolveCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *CatalogHandler) AddType(c echo.Context) error {
	var req addTypeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	t, err := h.uc.AddObservationType(c.Request().Context(), catalog.AddTypeInput{
		Code:        req.Code,
		Title:       req.Title,
		Label:       req.Label,
		Kind:        observation.Kind(req.Kind),
		CauseLabels: req.Causes,
		ProductIDs:  req.ProductIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *CatalogHandler) ManualTypes(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	list, err := h.uc.ManualTypesForProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) ListConfigs(c echo.Context) error {
	list, err := h.uc.ListRequestConfigs(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) SetAutoApprove(c echo.Context) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}
	var req autoApproveReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	cfg, err := h.uc.SetAutoApprove(c.Request().Context(), id, *req.AutoApprove)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}
