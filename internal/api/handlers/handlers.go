package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"marketplace-portal/internal/api/middleware"
	"marketplace-portal/internal/domain"
	"marketplace-portal/internal/realtime"
	"marketplace-portal/internal/services"
	"marketplace-portal/pkg/logger"
)

// ConnectionCounter reports how many websocket connections this process holds.
type ConnectionCounter interface {
	Count() int
}

type Dependencies struct {
	Marketplace   *services.MarketplaceService
	Notifications *services.NotificationService
	Reviews       *services.ReviewService
	Dispatcher    domain.Dispatcher
	Connections   ConnectionCounter
	Verifier      realtime.IdentityVerifier
	AdminToken    string
	// WebSocket is mounted on /ws when set.
	WebSocket http.Handler
	Log       logger.Logger
}

type Handler struct {
	marketplace   *services.MarketplaceService
	notifications *services.NotificationService
	reviews       *services.ReviewService
	dispatcher    domain.Dispatcher
	connections   ConnectionCounter
	log           logger.Logger
}

// API installs the validator, the error handler and every route on e.
func API(e *echo.Echo, deps Dependencies) {
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())

	v := newAppValidator()
	e.Validator = v
	e.HTTPErrorHandler = newHTTPErrorHandler(v.translator, deps.Log)

	verifier := deps.Verifier
	if verifier == nil {
		verifier = realtime.ClaimFormatVerifier()
	}

	h := &Handler{
		marketplace:   deps.Marketplace,
		notifications: deps.Notifications,
		reviews:       deps.Reviews,
		dispatcher:    deps.Dispatcher,
		connections:   deps.Connections,
		log:           deps.Log,
	}

	e.GET("/health", h.Health)
	if deps.WebSocket != nil {
		e.GET("/ws", echo.WrapHandler(deps.WebSocket))
	}

	api := e.Group("/api/v1", middleware.RequireActor(verifier))

	api.POST("/ads", h.CreateAd)
	api.GET("/ads/:id", h.GetAd)
	api.POST("/ads/:id/close", h.CloseAd)
	api.POST("/ads/:id/cancel", h.CancelAd)
	api.POST("/ads/:id/bids", h.SubmitBid)
	api.POST("/ads/:id/reviews", h.PostReview)

	api.POST("/bids/:id/accept", h.AcceptBid)
	api.POST("/bids/:id/reject", h.RejectBid)
	api.POST("/bids/:id/withdraw", h.WithdrawBid)

	api.GET("/users/:id/reviews", h.ListReviews)

	api.GET("/notifications", h.ListNotifications)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.POST("/notifications/read-all", h.MarkAllRead)
	api.POST("/notifications/:id/read", h.MarkRead)

	e.POST("/api/v1/broadcasts", h.Broadcast, middleware.RequireAdminToken(deps.AdminToken))
}

func (h *Handler) Health(c echo.Context) error {
	connections := 0
	if h.connections != nil {
		connections = h.connections.Count()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"service":     "marketplace-portal",
		"connections": connections,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// bindAndValidate is the bind + validate pair every write endpoint starts with.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}
