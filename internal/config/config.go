package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the service configuration, read from the environment.
type Config struct {
	HTTPAddr string `validate:"required"`

	FleetAPIURL     string        `validate:"required,url"`
	FleetAPITimeout time.Duration `validate:"gte=0"`

	MapsAPIKey        string
	MapsBaseURL       string        `validate:"omitempty,url"`
	DirectionsTimeout time.Duration `validate:"gte=0"`
	MapsRatePerSec    float64       `validate:"gte=0"`
	PlacesCacheTTL    time.Duration `validate:"gte=0"`

	JWTSecret  string        `validate:"required,min=16"`
	SessionTTL time.Duration `validate:"gt=0"`

	DB DBConfig

	LogFile  string
	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`

	AllowedOrigins []string
}

// DBConfig selects and locates the local database.
type DBConfig struct {
	Driver   string `validate:"oneof=postgres sqlite"`
	Host     string `validate:"required_if=Driver postgres"`
	Port     string
	User     string
	Password string
	Name     string `validate:"required_if=Driver postgres"`
	SSLMode  string
	TimeZone string
	Path     string `validate:"required_if=Driver sqlite"`
}

// DSN builds the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on env vars")
	}

	var errs []string
	dur := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	num := func(key, def string) float64 {
		f, err := strconv.ParseFloat(getEnv(key, def), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return f
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		FleetAPIURL:     getEnv("FLEET_API_URL", "https://vehicle-management-ecru.vercel.app/api"),
		FleetAPITimeout: dur("FLEET_API_TIMEOUT", "15s"),

		MapsAPIKey:        getEnv("MAPS_API_KEY", ""),
		MapsBaseURL:       getEnv("MAPS_BASE_URL", ""),
		DirectionsTimeout: dur("DIRECTIONS_TIMEOUT", "0s"),
		MapsRatePerSec:    num("MAPS_RATE_PER_SEC", "10"),
		PlacesCacheTTL:    dur("PLACES_CACHE_TTL", "10m"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: dur("SESSION_TTL", "12h"),

		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "routedesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
			Path:     getEnv("DB_PATH", "routedesk.db"),
		},

		LogFile:  getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
