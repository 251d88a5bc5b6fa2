package handler

import (
	"context"
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-identity/internal/graph"
	"github.com/iliyamo/videotube-identity/internal/middleware"
)

// GraphQuery is the read side of the social graph.
type GraphQuery interface {
	ChannelProfile(ctx context.Context, viewerID, username string) (graph.Profile, error)
	WatchHistory(ctx context.Context, principalID string) iter.Seq2[graph.ContentSummary, error]
}

// Social is the write side of the social graph.
type Social interface {
	Subscribe(ctx context.Context, subscriberID, channelUsername string) error
	Unsubscribe(ctx context.Context, subscriberID, channelUsername string) error
	RecordView(ctx context.Context, principalID, videoID string) error
}

// ChannelHandler serves channel profiles, subscriptions and watch history.
type ChannelHandler struct {
	Graph  GraphQuery
	Social Social
}

func NewChannelHandler(g GraphQuery, s Social) *ChannelHandler {
	return &ChannelHandler{Graph: g, Social: s}
}

// Profile returns a channel with its subscription counts. isSubscribed is
// relative to the caller and always false for anonymous requests.
func (h *ChannelHandler) Profile(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Graph.ChannelProfile(ctx, middleware.CurrentUserID(c), c.Param("username"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Subscribe makes the caller follow the channel. Repeating it is harmless.
func (h *ChannelHandler) Subscribe(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Social.Subscribe(ctx, middleware.CurrentUserID(c), c.Param("username")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unsubscribe removes the caller's subscription if there is one.
func (h *ChannelHandler) Unsubscribe(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Social.Unsubscribe(ctx, middleware.CurrentUserID(c), c.Param("username")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type recordViewReq struct {
	VideoID string `json:"videoId"`
}

// History returns the caller's watch history, oldest first.
func (h *ChannelHandler) History(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	items := []graph.ContentSummary{}
	for it, err := range h.Graph.WatchHistory(ctx, middleware.CurrentUserID(c)) {
		if err != nil {
			return writeError(c, err)
		}
		items = append(items, it)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// RecordView appends a video to the caller's watch history.
func (h *ChannelHandler) RecordView(c echo.Context) error {
	var req recordViewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Social.RecordView(ctx, middleware.CurrentUserID(c), req.VideoID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}
