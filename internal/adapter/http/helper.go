package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderActor names who performs a mutating call.
const HeaderActor = "Ax-Actor-Id"

func actor(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderActor))
}

// idParam parses a positive numeric path param, writing a 400 when it is not.
func idParam(c echo.Context, name string) (uint64, bool, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + " path param"})
	}
	return n, true, nil
}
