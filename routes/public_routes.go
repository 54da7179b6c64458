package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App, admin *handlers.AdminHandler, bookings *handlers.BookingHandler) {
	api := app.Group("/api/v1")

	api.Get("/packages", admin.PublicPackages)
	api.Get("/slots/available", bookings.AvailableSlots)
}
