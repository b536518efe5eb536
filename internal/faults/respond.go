package faults

import (
	"github.com/labstack/echo/v4"
)

// Respond writes a fault as the standard JSON error envelope.
func Respond(c echo.Context, err error) error {
	kind := KindOf(err)
	return c.JSON(HTTPStatus(kind), echo.Map{
		"error": echo.Map{
			"kind":    kind,
			"message": MessageOf(err),
		},
	})
}
