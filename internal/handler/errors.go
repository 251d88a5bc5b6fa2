package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/videotube-identity/internal/graph"
	"github.com/iliyamo/videotube-identity/internal/repository"
	"github.com/iliyamo/videotube-identity/internal/service"
	"github.com/iliyamo/videotube-identity/internal/session"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// writeError maps a domain error onto a status code and a stable error code.
// Unknown errors are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrTokenReused):
		clearSessionCookies(c)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_reused"})
	case errors.Is(err, session.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidPassword):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_password"})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, graph.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrStorageFailure), errors.Is(err, context.DeadlineExceeded):
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("storage unavailable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage_unavailable"})
	default:
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": msg})
}
