package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
)

// statusFor maps domain errors onto HTTP codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFinalized),
		errors.Is(err, domain.ErrObservationClosed),
		errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotRetriable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		c.Logger().Error(err)
		msg = "internal error"
	}
	return c.JSON(code, ErrorResponse{Error: msg})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
}

func invalid(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Details: ToFieldErrors(err),
	})
}

// bindValid binds the body into v and runs the registered validator.
func bindValid(c echo.Context, v any) (bool, error) {
	if err := c.Bind(v); err != nil {
		return false, badBody(c)
	}
	if err := c.Validate(v); err != nil {
		return false, invalid(c, err)
	}
	return true, nil
}
