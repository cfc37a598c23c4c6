package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// handleError renders every error that escapes a handler or middleware as
// an ErrorResponse. Echo's own errors (unknown route, bad API key, refresh
// rate limit) keep their status; anything else is a 500 and gets logged.
func (h *Handlers) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, ErrorResponse{
			Error: strings.ToLower(http.StatusText(he.Code)),
			Code:  he.Code,
		})
		return
	}

	if h.Logger != nil {
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
		}).Error("unhandled api error")
	}
	resp := ErrorResponse{Error: "internal server error", Code: http.StatusInternalServerError}
	if h.DevMode {
		resp.Details = err.Error()
	}
	_ = c.JSON(http.StatusInternalServerError, resp)
}
