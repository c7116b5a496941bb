package http

import "github.com/labstack/echo/v4"

// Handlers groups everything Register mounts.
type Handlers struct {
	Health       *Handler
	Affiliations *AffiliationHandler
	Requests     *RequestHandler
	Observations *ObservationHandler
	Catalog      *CatalogHandler
}

// Register mounts the API on e. mutating wraps every non-GET route, typically
// with the idempotency middleware; it may be empty.
func Register(e *echo.Echo, h Handlers, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)

	e.POST("/affiliations", h.Affiliations.Create, mutating...)
	e.GET("/affiliations", h.Affiliations.List)
	e.GET("/affiliations/:id", h.Affiliations.Get)
	e.POST("/affiliations/:id/validations", h.Affiliations.RunStepValidation, mutating...)
	e.POST("/affiliations/:id/finalize", h.Affiliations.Finalize, mutating...)
	e.POST("/affiliations/:id/submit", h.Affiliations.Submit, mutating...)

	e.GET("/requests", h.Requests.List)
	e.GET("/requests/:id", h.Requests.Get)
	e.GET("/requests/:id/history", h.Requests.History)
	e.GET("/requests/:id/observations", h.Requests.Observations)
	e.POST("/requests/:id/outcomes", h.Requests.Ingest, mutating...)
	e.POST("/requests/:id/observations", h.Requests.AddObservation, mutating...)
	e.POST("/requests/:id/resolve", h.Requests.Resolve, mutating...)

	e.POST("/observations/:id/resolve", h.Observations.Resolve, mutating...)
	e.POST("/observations/:id/reject", h.Observations.Reject, mutating...)
	e.POST("/observations/:id/retry", h.Observations.Retry, mutating...)
	e.GET("/observations/:id/causes", h.Observations.Causes)
	e.GET("/validation-results/:id/history", h.Observations.ValidationHistory)
	e.GET("/provider-responses/:id", h.Observations.ProviderResponse)

	e.GET("/observation-types", h.Catalog.ListTypes)
	e.GET("/observation-types/:code", h.Catalog.GetType)
	e.POST("/observation-types", h.Catalog.AddType, mutating...)
	e.GET("/products/:id/manual-observation-types", h.Catalog.ManualTypes)
	e.GET("/request-configs", h.Catalog.ListConfigs)
	e.PUT("/request-configs/:id", h.Catalog.SetAutoApprove, mutating...)
}
