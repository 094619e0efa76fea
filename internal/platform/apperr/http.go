package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error BodyError `json:"error"`
}

type BodyError struct {
	Code     Code              `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HTTPErrorHandler renders domain errors and echo.HTTPErrors in one envelope.
// Internal failures are logged and masked.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

// Render maps err onto a status code and response body.
func Render(err error) (int, Body) {
	var de *Error
	if errors.As(err, &de) {
		msg := de.Message
		if de.Code == CodeInternal {
			msg = "internal server error"
		}
		return de.Code.HTTPStatus(), Body{Error: BodyError{Code: de.Code, Message: msg, Metadata: de.Metadata}}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, Body{Error: BodyError{Code: codeForStatus(he.Code), Message: msg}}
	}

	return http.StatusInternalServerError, Body{Error: BodyError{Code: CodeInternal, Message: "internal server error"}}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= 500 {
			return CodeInternal
		}
		return Code(http.StatusText(status))
	}
}
