package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamwatch/internal/service"
)

// WatchlistHandler mantiene dependencias para los endpoints del watchlist.
type WatchlistHandler struct {
	logger    *zap.Logger
	watchServ *service.WatchlistService
}

func NewWatchlistHandler(logger *zap.Logger, watchServ *service.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		logger:    logger,
		watchServ: watchServ,
	}
}

// Dashboard maneja GET /dashboard: lista los streamers seguidos y muestra los
// avisos post-redirect de las mutaciones.
func (h *WatchlistHandler) Dashboard(c *gin.Context) {
	username, ok := AuthUsername(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	streamers, err := h.watchServ.List(c.Request.Context(), username)
	if err != nil {
		h.logger.Error("list watchlist failed", zap.Error(err), zap.String("username", username))
		renderStatusPage(c, http.StatusInternalServerError, "could not load dashboard")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Username":  username,
		"Streamers": streamers,
		"Error":     c.Query("error"),
		"Success":   c.Query("success"),
	})
}

// AddStreamer maneja POST /add_streamer.
func (h *WatchlistHandler) AddStreamer(c *gin.Context) {
	username, ok := AuthUsername(c)
	if !ok {
		renderStatusPage(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	err := h.watchServ.Add(c.Request.Context(), username, c.PostForm("streamer_name"))
	if err != nil {
		if errors.Is(err, service.ErrStreamerExists) || errors.Is(err, service.ErrInvalidStreamer) {
			c.Redirect(http.StatusSeeOther, "/dashboard?error=streamer_exists")
			return
		}
		h.logger.Error("add streamer failed", zap.Error(err), zap.String("username", username))
		renderStatusPage(c, http.StatusInternalServerError, "could not add streamer")
		return
	}

	c.Redirect(http.StatusSeeOther, "/dashboard?success=streamer_added")
}

// DeleteStreamer maneja POST /delete_streamer/:name. Borrar un streamer
// ausente también termina en redirect: la operación es idempotente.
func (h *WatchlistHandler) DeleteStreamer(c *gin.Context) {
	username, ok := AuthUsername(c)
	if !ok {
		renderStatusPage(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.watchServ.Remove(c.Request.Context(), username, c.Param("name")); err != nil {
		if !errors.Is(err, service.ErrInvalidStreamer) {
			h.logger.Error("delete streamer failed", zap.Error(err), zap.String("username", username))
			renderStatusPage(c, http.StatusInternalServerError, "could not delete streamer")
			return
		}
	}

	c.Redirect(http.StatusSeeOther, "/dashboard")
}
