package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"NewsScanner/internal/ports"
	"NewsScanner/internal/usecase"
)

// validationError is returned for malformed request parameters.
type validationError struct {
	Message string
}

func (e *validationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &validationError{Message: fmt.Sprintf(format, args...)}
}

func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *validationError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ve):
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message})
		case errors.Is(err, ports.ErrNotFound):
			_ = c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, usecase.ErrStageBusy):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, usecase.ErrScrapeFailed):
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		case errors.As(err, &he):
			_ = c.JSON(he.Code, map[string]string{"error": fmt.Sprintf("%v", he.Message)})
		default:
			log.Error("unhandled error", "error", err)
			_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
	}
}
