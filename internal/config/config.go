// journal-payments/internal/config/config.go
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/example/journal-payments/internal/click"
	"github.com/example/journal-payments/internal/payme"
	"github.com/example/journal-payments/internal/secrets"
)

// Config gathers everything the gateway binary needs from the environment.
// Secrets are carried in explicit structs injected into the adapters, not in
// package globals.
type Config struct {
	HTTPAddr    string
	DatabaseURL string // empty = in-memory store
	Brokers     []string
	EventTopic  string

	Click        click.Config
	ClickSecrets secrets.Resolver
	Payme        payme.Config
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}

	cfg := Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EventTopic:  getenv("KAFKA_EVENT_TOPIC", "payments.transitions"),
		Click: click.Config{
			MerchantID:      getenv("CLICK_MERCHANT_ID", "45730"),
			MerchantUserID:  getenv("CLICK_MERCHANT_USER_ID", "63536"),
			ServiceID:       getenv("CLICK_SERVICE_ID", "82154"),
			APIBase:         getenv("CLICK_API_BASE", "https://api.click.uz/v2/merchant"),
			AmountTolerance: decimalEnv("CLICK_AMOUNT_TOLERANCE", "0.01"),
		},
		Payme: payme.Config{
			MerchantID: os.Getenv("PAYME_MERCHANT_ID"),
			LiveKey:    os.Getenv("PAYME_MERCHANT_KEY"),
			TestKey:    os.Getenv("PAYME_TEST_KEY"),
			Endpoint:   getenv("PAYME_ENDPOINT", "https://checkout.paycom.uz"),
			TestMode:   getenv("PAYME_MODE", "test") != "live",
		},
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Brokers = strings.Split(v, ",")
	}

	cfg.ClickSecrets = secrets.Resolver{
		ServiceSecrets:   parseSecretMap(os.Getenv("CLICK_SERVICE_SECRETS")),
		DefaultServiceID: cfg.Click.ServiceID,
		DefaultSecret:    os.Getenv("CLICK_SECRET_KEY"),
	}
	if cfg.ClickSecrets.DefaultSecret != "" {
		if _, ok := cfg.ClickSecrets.ServiceSecrets[cfg.Click.ServiceID]; !ok {
			cfg.ClickSecrets.ServiceSecrets[cfg.Click.ServiceID] = cfg.ClickSecrets.DefaultSecret
		}
	}
	return cfg
}

// parseSecretMap decodes "id1:secret1,id2:secret2".
func parseSecretMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		id, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || id == "" {
			continue
		}
		out[id] = secret
	}
	return out
}

func decimalEnv(k, d string) decimal.Decimal {
	v := getenv(k, d)
	dec, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %s", k, v, d)
		return decimal.RequireFromString(d)
	}
	return dec
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
