package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminHandler exposes operator actions.
type AdminHandler struct {
	Sessions Sessions
}

func NewAdminHandler(s Sessions) *AdminHandler { return &AdminHandler{Sessions: s} }

// RevokeSession ends the session of the principal in the path.
func (h *AdminHandler) RevokeSession(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest(c, "principal id is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
