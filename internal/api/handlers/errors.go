package handlers

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
)

// newHTTPErrorHandler maps domain errors onto status codes. Anything it does
// not recognise is a server error and gets logged.
func newHTTPErrorHandler(translator ut.Translator, log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code    int
			message interface{}
			httpErr *echo.HTTPError
			valErrs validator.ValidationErrors
			domErr  *domain.ValidationError
		)

		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &valErrs):
			fields := make(map[string]string, len(valErrs))
			for _, fe := range valErrs {
				fields[fe.Field()] = fe.Translate(translator)
			}
			code = http.StatusBadRequest
			message = echo.Map{"error": domain.ErrValidation.Error(), "fields": fields}
		case errors.As(err, &domErr):
			code = http.StatusBadRequest
			if len(domErr.Fields) > 0 {
				fields := make(map[string]string, len(domErr.Fields))
				for _, fe := range domErr.Fields {
					fields[fe.Field] = fe.Error
				}
				message = echo.Map{"error": domErr.Error(), "fields": fields}
			} else {
				message = domErr.Error()
			}
		case errors.Is(err, domain.ErrNotFound):
			code = http.StatusNotFound
			message = domain.ErrNotFound.Error()
		case errors.Is(err, domain.ErrForbidden):
			code = http.StatusForbidden
			message = domain.ErrForbidden.Error()
		case errors.Is(err, domain.ErrConflict):
			code = http.StatusConflict
			message = domain.ErrConflict.Error()
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
		}

		if code >= http.StatusInternalServerError {
			log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			log.Error("Failed to write error response", "error", err)
		}
	}
}
