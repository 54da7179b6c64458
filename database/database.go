package database

import (
	"errors"
	"fmt"
	"log"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options is the gorm configuration shared by the server, the job runner and
// the test databases.
func Options() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Options())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Println("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Package{},
		&models.AvailabilitySlot{},
		&models.Subscription{},
		&models.Booking{},
		&models.Payment{},
		&models.PaymentIntent{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Println("✅ Database migration successful")
	return nil
}

func SeedAdmin(db *gorm.DB, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Println("⚠️ Admin seed skipped, ADMIN_EMAIL or ADMIN_PASSWORD not set.")
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", cfg.Email).First(&existing).Error
	if err == nil {
		log.Println("Admin user already exists.")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		FullName: cfg.FullName,
		Email:    cfg.Email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	log.Println("✅ Admin user seeded successfully")
	return nil
}
