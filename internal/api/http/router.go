package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/presence-desk/internal/api/http/handlers"
	"github.com/spec-kit/presence-desk/internal/auth"
	"github.com/spec-kit/presence-desk/internal/observability"
)

// DeskRouteConfig bundles dependencies for the desk action surface.
type DeskRouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Presence       *handlers.PresenceHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterDeskRoutes wires the desk HTTP routes.
func RegisterDeskRoutes(app *fiber.App, cfg DeskRouteConfig) {
	registerOps(app, cfg.Health, cfg.Metrics)

	app.Post("/session", cfg.Session.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Delete("/session", cfg.Session.Logout)
	protected.Get("/state", cfg.Presence.State)
	protected.Put("/presence", cfg.Presence.SetPresence)
	protected.Post("/presence/refresh", cfg.Presence.Refresh)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Post("/tickets/refresh", cfg.Tickets.Refresh)
	protected.Post("/tickets/:id/complete", cfg.Tickets.Complete)
	protected.Post("/tickets/:id/return", cfg.Tickets.Return)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Put("/mute", cfg.Notifications.SetMuted)
	protected.Get("/journal", cfg.Notifications.Journal)
}

// RelayRouteConfig bundles dependencies for the webhook relay.
type RelayRouteConfig struct {
	Health  *handlers.HealthHandler
	Relay   *handlers.RelayHandler
	Metrics *observability.Metrics
}

// RegisterRelayRoutes wires the relay HTTP routes.
func RegisterRelayRoutes(app *fiber.App, cfg RelayRouteConfig) {
	registerOps(app, cfg.Health, cfg.Metrics)

	app.Post("/webhook/new_ticket", cfg.Relay.Webhook)
	app.Get("/webhook/new_ticket", cfg.Relay.Webhook)
	app.Get("/events", cfg.Relay.Events)
	app.Get("/api/stats", cfg.Relay.Stats)
}

func registerOps(app *fiber.App, health *handlers.HealthHandler, metrics *observability.Metrics) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
