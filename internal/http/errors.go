package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/titletester/internal/identity"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// errorHandler renders every error as {"detail": "..."}. Verifier error kinds
// are mapped to status codes here and nowhere else.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, detail := errorResponse(err)
		if code >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, map[string]string{"detail": detail})
		}
		if werr != nil {
			log.Error("write error response", zap.Error(werr))
		}
	}
}

func errorResponse(err error) (int, string) {
	var ie *identity.Error
	if errors.As(err, &ie) {
		return identityStatus(ie.Kind), ie.Kind.Detail()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok && msg != "" {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func identityStatus(kind identity.ErrorKind) int {
	switch kind {
	case identity.KindUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}
