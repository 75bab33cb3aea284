// Package config содержит логику чтения конфигурации сервиса автошколы.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultRunAddress = "localhost:5000"

// ErrNoStore возвращается, если не задано ни одно хранилище.
var ErrNoStore = errors.New("either MONGODB_URI or DATABASE_URI must be set")

// Config содержит параметры конфигурации сервиса автошколы.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	Port          string `env:"PORT"`
	DatabaseURI   string `env:"DATABASE_URI"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"driveright"`

	PaystackSecretKey string `env:"PAYSTACK_SECRET_KEY"`
	PaystackPublicKey string `env:"PAYSTACK_PUBLIC_KEY"`
	PaystackBaseURL   string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	APIURL            string `env:"API_URL"`
	Currency          string `env:"CURRENCY"`

	JWTSecret     string `env:"JWT_SECRET"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	WizardTTL          time.Duration `env:"WIZARD_TTL" envDefault:"30m"`
}

// UseMongo сообщает, выбрано ли хранилище MongoDB.
func (c *Config) UseMongo() bool {
	return c.MongoURI != ""
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMongoURI := cfg.MongoURI

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "PostgreSQL database URI")
	flag.StringVar(&cfg.MongoURI, "m", "", "MongoDB URI")

	flag.Parse()

	switch {
	case envRunAddress != "":
		cfg.RunAddress = envRunAddress
	case cfg.Port != "":
		cfg.RunAddress = ":" + cfg.Port
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMongoURI != "" {
		cfg.MongoURI = envMongoURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "http://" + hostPort(cfg.RunAddress)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.MongoURI == "" && cfg.DatabaseURI == "" {
		return nil, ErrNoStore
	}

	return cfg, nil
}

func hostPort(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
