package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.AdminHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(jwtSecret), middleware.AdminRequired())

	packages := admin.Group("/packages")
	packages.Get("", h.ListPackages)
	packages.Post("", h.CreatePackage)
	packages.Delete("/:id", h.DeactivatePackage)

	slots := admin.Group("/slots")
	slots.Post("", h.CreateSlot)
	slots.Post("/:id/block", h.BlockSlot)
	slots.Post("/:id/unblock", h.UnblockSlot)

	jobs := admin.Group("/jobs")
	jobs.Get("", h.ListJobs)
	jobs.Post("/:job/run", h.RunJob)
}
