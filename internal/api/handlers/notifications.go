package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"marketplace-portal/internal/api/middleware"
	"marketplace-portal/internal/domain"
)

func (h *Handler) ListNotifications(c echo.Context) error {
	var (
		unread bool
		limit  int
	)
	if err := echo.QueryParamsBinder(c).Bool("unread", &unread).Int("limit", &limit).BindError(); err != nil {
		return err
	}

	list, err := h.notifications.List(c.Request().Context(), middleware.Actor(c), unread, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context(), middleware.Actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

func (h *Handler) MarkRead(c echo.Context) error {
	if err := h.notifications.MarkRead(c.Request().Context(), middleware.Actor(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	updated, err := h.notifications.MarkAllRead(c.Request().Context(), middleware.Actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

type broadcastRequest struct {
	Message       string          `json:"message" validate:"required,max=2000"`
	Data          json.RawMessage `json:"data"`
	ExcludeUserID string          `json:"excludeUserId"`
}

type broadcastPayload struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Broadcast pushes an operator message to every authenticated connection.
func (h *Handler) Broadcast(c echo.Context) error {
	var req broadcastRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	h.dispatcher.Broadcast(c.Request().Context(), domain.EventBroadcast,
		broadcastPayload{Message: req.Message, Data: req.Data}, req.ExcludeUserID)
	h.log.Info("Broadcast dispatched", "exclude_user_id", req.ExcludeUserID)
	return c.NoContent(http.StatusAccepted)
}
