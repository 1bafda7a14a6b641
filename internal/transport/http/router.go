package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRouter sets up the local consumer API. The agent binds to loopback; UI
// surfaces running in a browser shell still need CORS headers.
func NewRouter(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Content-Type"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	e.GET("/health", h.Health)

	e.GET("/notifications", h.ListNotifications)
	e.GET("/notifications/unread-count", h.GetUnreadCount)
	e.POST("/notifications/:id/read", h.MarkRead)
	e.POST("/notifications/read-all", h.MarkAllRead)
	e.GET("/notifications/stream", h.Stream)
	e.POST("/view", h.SetView)

	return e
}
