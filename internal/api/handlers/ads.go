package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"marketplace-portal/internal/api/middleware"
	"marketplace-portal/internal/domain"
)

type adDetails struct {
	Ad   *domain.Ad    `json:"ad"`
	Bids []*domain.Bid `json:"bids"`
}

func (h *Handler) CreateAd(c echo.Context) error {
	var req domain.NewAd
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ad, err := h.marketplace.CreateAd(c.Request().Context(), middleware.Actor(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ad)
}

func (h *Handler) GetAd(c echo.Context) error {
	ctx := c.Request().Context()
	ad, err := h.marketplace.GetAd(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	bids, err := h.marketplace.ListBids(ctx, ad.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adDetails{Ad: ad, Bids: bids})
}

func (h *Handler) CloseAd(c echo.Context) error {
	ad, err := h.marketplace.CloseAd(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *Handler) CancelAd(c echo.Context) error {
	ad, err := h.marketplace.CancelAd(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *Handler) SubmitBid(c echo.Context) error {
	var req domain.NewBid
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	bid, err := h.marketplace.SubmitBid(c.Request().Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *Handler) PostReview(c echo.Context) error {
	var req domain.NewReview
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	review, err := h.reviews.PostReview(c.Request().Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *Handler) ListReviews(c echo.Context) error {
	reviews, err := h.reviews.ListForUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviews)
}
