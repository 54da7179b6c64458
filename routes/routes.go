package routes

import (
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Profile       *handlers.ProfileHandler
	Bookings      *handlers.BookingHandler
	Subscriptions *handlers.SubscriptionHandler
	Payments      *handlers.PaymentHandler
	Admin         *handlers.AdminHandler
}

// Register mounts every route group under /api/v1.
func Register(app *fiber.App, h Handlers, jwtSecret string) {
	AuthRoutes(app, h.Auth)
	ProfileRoutes(app, h.Profile, jwtSecret)
	PublicRoutes(app, h.Admin, h.Bookings)
	BookingRoutes(app, h.Bookings, jwtSecret)
	SubscriptionRoutes(app, h.Subscriptions, jwtSecret)
	PaymentRoutes(app, h.Payments)
	AdminRoutes(app, h.Admin, jwtSecret)
}
