package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func ProfileRoutes(app *fiber.App, h *handlers.ProfileHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	profile := api.Group("/profile", middleware.Protected(jwtSecret))
	profile.Get("", h.GetProfile)
	profile.Put("", h.UpdateProfile)
}
