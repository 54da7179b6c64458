package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App, h *handlers.BookingHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(jwtSecret))
	booking.Post("", h.Create)
	booking.Get("", h.List)
	booking.Get("/upcoming-reminder", h.Upcoming)
	booking.Get("/:id", h.Get)
	booking.Post("/:id/cancel", h.Cancel)
	booking.Post("/:id/reschedule", h.Reschedule)
	booking.Post("/:id/confirm", middleware.AdminRequired(), h.Confirm)
}
