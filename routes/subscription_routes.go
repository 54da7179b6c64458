package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func SubscriptionRoutes(app *fiber.App, h *handlers.SubscriptionHandler, jwtSecret string) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(jwtSecret)

	subscriptions := api.Group("/subscriptions")
	// Guests buy without an account; the token is only read when present.
	subscriptions.Post("/purchase", middleware.OptionalAuth(jwtSecret), h.Purchase)
	subscriptions.Get("/me", protected, h.Mine)
	subscriptions.Get("/:id", protected, h.Get)
	subscriptions.Get("/:id/payments", protected, h.Payments)
	subscriptions.Post("/:id/pause", protected, h.Pause)
	subscriptions.Post("/:id/resume", protected, h.Resume)
	subscriptions.Post("/:id/cancel", protected, h.Cancel)
}
