// Package config содержит логику чтения конфигурации SMM-панели.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации SMM-панели.
type Config struct {
	RunAddress             string `env:"RUN_ADDRESS"`
	DatabaseURI            string `env:"DATABASE_URI"`
	PaymentProviderAddress string `env:"PAYMENT_PROVIDER_ADDRESS"`
	SupplierAddress        string `env:"SUPPLIER_ADDRESS"`
	AuthSecret             string `env:"AUTH_SECRET"`
	Currency               string `env:"CURRENCY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentProviderAddress
	envSupplierAddress := cfg.SupplierAddress
	envAuthSecret := cfg.AuthSecret
	envCurrency := cfg.Currency

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentProviderAddress, "p", "", "payment provider address (empty selects the fake provider)")
	flag.StringVar(&cfg.SupplierAddress, "s", "", "upstream supplier address")
	flag.StringVar(&cfg.AuthSecret, "k", "", "secret key for auth token signing")
	flag.StringVar(&cfg.Currency, "c", "KRW", "currency code for payment intents")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentProviderAddress = envPaymentAddress
	}
	if envSupplierAddress != "" {
		cfg.SupplierAddress = envSupplierAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envCurrency != "" {
		cfg.Currency = envCurrency
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Currency == "" {
		cfg.Currency = "KRW"
	}

	return cfg, nil
}
