package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"marketplace-portal/internal/api/middleware"
)

func (h *Handler) AcceptBid(c echo.Context) error {
	bid, err := h.marketplace.AcceptBid(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *Handler) RejectBid(c echo.Context) error {
	bid, err := h.marketplace.RejectBid(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *Handler) WithdrawBid(c echo.Context) error {
	bid, err := h.marketplace.WithdrawBid(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bid)
}
