// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/conakrylabs/ticket-bot/internal/channel"
	"github.com/conakrylabs/ticket-bot/internal/handler"
)

// RegisterRoutes registers the health check on the provided Echo
// instance. This endpoint can be used by load balancers or monitoring
// systems to verify that the service is up and running.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterWhatsApp registers the Twilio webhook for inbound WhatsApp
// messages. rateLimit buckets by sender so one chatty buyer cannot
// starve the webhook.
func RegisterWhatsApp(e *echo.Echo, w *channel.WhatsApp, rateLimit echo.MiddlewareFunc) {
	e.POST("/webhook/whatsapp", w.HandleWebhook, rateLimit)
}

// RegisterCatalog registers the unauthenticated catalog endpoints.
// cache short-circuits repeated listings; both middlewares may be
// pass-throughs when Redis is absent.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, rateLimit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", rateLimit, cache)
	g.GET("/events", h.GetEvents)
	g.GET("/events/:id", h.GetEvent)
}

// RegisterMedia registers the voucher file route the WhatsApp adapter
// points Twilio at.
func RegisterMedia(e *echo.Echo, m *handler.MediaHandler) {
	e.GET("/media/tickets/:file", m.GetTicketMedia)
}
