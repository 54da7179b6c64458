package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName     string `envconfig:"APP_NAME" default:"Studio Booking"`
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	Booking BookingConfig `envconfig:"BOOKING"`
	Gateway GatewayConfig `envconfig:"WOMPI"`
	Mail    MailConfig    `envconfig:"SMTP"`
	Broker  BrokerConfig  `envconfig:"RABBITMQ"`
	Redis   RedisConfig   `envconfig:"REDIS"`
	Jobs    JobsConfig    `envconfig:"JOBS"`
	Admin   AdminConfig   `envconfig:"ADMIN"`
}

type BookingConfig struct {
	CancelCutoff   time.Duration `envconfig:"CANCEL_CUTOFF" default:"24h"`
	TravelBuffer   time.Duration `envconfig:"TRAVEL_BUFFER" default:"45m"`
	ReminderWindow time.Duration `envconfig:"REMINDER_WINDOW" default:"24h"`
}

type GatewayConfig struct {
	BaseURL         string        `envconfig:"BASE_URL" default:"https://sandbox.wompi.co/v1"`
	PublicKey       string        `envconfig:"PUBLIC_KEY"`
	PrivateKey      string        `envconfig:"PRIVATE_KEY"`
	EventsSecret    string        `envconfig:"EVENTS_SECRET"`
	IntegritySecret string        `envconfig:"INTEGRITY_SECRET"`
	Currency        string        `envconfig:"CURRENCY" default:"COP"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"15s"`
}

type MailConfig struct {
	Host       string `envconfig:"HOST"`
	Port       int    `envconfig:"PORT" default:"587"`
	Username   string `envconfig:"USERNAME"`
	Password   string `envconfig:"PASSWORD"`
	SenderName string `envconfig:"SENDER_NAME" default:"Studio Booking"`
	Sender     string `envconfig:"SENDER"`
}

type BrokerConfig struct {
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"studio.events"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type JobsConfig struct {
	BillingSchedule   string        `envconfig:"BILLING_CRON" default:"0 6 * * *"`
	ExpirySchedule    string        `envconfig:"EXPIRY_CRON" default:"5 0 * * *"`
	ReconcileSchedule string        `envconfig:"RECONCILE_CRON" default:"*/15 * * * *"`
	ReminderSchedule  string        `envconfig:"REMINDER_CRON" default:"0 9 * * *"`
	ReconcileAfter    time.Duration `envconfig:"RECONCILE_AFTER" default:"15m"`
	ExpiryReminder    time.Duration `envconfig:"EXPIRY_REMINDER_LEAD" default:"72h"`
	LockTTL           time.Duration `envconfig:"LOCK_TTL" default:"30m"`
}

type AdminConfig struct {
	Email    string `envconfig:"EMAIL"`
	Password string `envconfig:"PASSWORD"`
	FullName string `envconfig:"FULL_NAME" default:"Studio Admin"`
}

func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
