package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/handlers"
	"github.com/anjiri1684/studio_booking/jobs"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/anjiri1684/studio_booking/routes"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("🔥 Invalid configuration: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.SeedAdmin(db, cfg.Admin); err != nil {
		log.Fatalf("🔥 %v", err)
	}

	fanout, closeNotifiers := notifications.FromConfig(db, cfg.Mail, cfg.Broker)
	notifier := notifications.NewAsync(fanout, 30*time.Second)

	gateway := payments.NewWompiClient(cfg.Gateway)
	bookings := services.NewBookingService(db, notifier, cfg.Booking)
	subscriptions := services.NewSubscriptionService(db, notifier)
	resolver := services.NewPaymentResolver(db, gateway, notifier)
	purchases := services.NewPurchaseService(db, gateway, resolver, cfg.Gateway)
	billing := services.NewBillingService(db, gateway, notifier)
	catalog := services.NewCatalogService(db, cfg.Gateway.Currency)

	runLock, closeRunLock, err := jobs.NewRunLock(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	runner := jobs.NewDefaultRunner(runLock, cfg.Jobs, billing, subscriptions, resolver)
	scheduler, err := jobs.NewScheduler(runner, cfg.Jobs)
	if err != nil {
		log.Fatalf("🔥 Invalid job schedule: %v", err)
	}
	scheduler.Start()
	log.Println("✅ Cron jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       cfg.AppName,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		MaxAge:       86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	routes.Register(app, routes.Handlers{
		Auth:          handlers.NewAuthHandler(db, cfg.JWTSecret),
		Profile:       handlers.NewProfileHandler(db),
		Bookings:      handlers.NewBookingHandler(bookings),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptions, purchases),
		Payments:      handlers.NewPaymentHandler(resolver),
		Admin:         handlers.NewAdminHandler(catalog, runner),
	}, cfg.JWTSecret)

	go func() {
		log.Printf("✅ Server is running on port %s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("🔥 Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(20 * time.Second); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	notifier.Wait()
	closeNotifiers()
	if err := closeRunLock(); err != nil {
		log.Printf("⚠️ Closing redis: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
