package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
)

const (
	defaultBackendURL = "http://solana.oerdek.com"
	defaultPriceURL   = "https://api.coingecko.com/api/v3/simple/price"
)

type Config struct {
	Port           string
	FrontendOrigin string

	BackendURL  string
	BackendKey  string
	PriceAPIURL string
	Currency    string

	CacheTTL       time.Duration
	UpdateInterval time.Duration
	HTTPTimeout    time.Duration

	// Integrations are raw entry strings, e.g. "general_stats" or
	// "wallet:<address>".
	Integrations []string

	// RedisURL is optional; without it the cache stays in memory.
	RedisURL       string
	RedisPassword  string
	CacheRetention time.Duration
}

func Load() Config {
	loadDotEnv(envOr("ENV_FILE", ".env"))

	cfg := Config{
		Port:           envOr("PORT", "8080"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		BackendURL:     envOr("BACKEND_URL", defaultBackendURL),
		BackendKey:     os.Getenv("BACKEND_KEY"),
		PriceAPIURL:    envOr("PRICE_API_URL", defaultPriceURL),
		Currency:       strings.ToUpper(envOr("CURRENCY", "USD")),
		CacheTTL:       durationOr("CACHE_TTL", 600*time.Second),
		UpdateInterval: durationOr("UPDATE_INTERVAL", 10*time.Minute),
		HTTPTimeout:    durationOr("HTTP_TIMEOUT", 30*time.Second),
		Integrations:   splitList(envOr("INTEGRATIONS", "general_stats,general_token_price")),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}
	cfg.CacheRetention = durationOr("CACHE_RETENTION", 6*cfg.CacheTTL)

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

// loadDotEnv sets variables from path without overriding the environment.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load env file", "path", path, "error", err)
		}
		return
	}
	slog.Info("loaded env file", "path", path)
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"BACKEND_KEY":    &cfg.BackendKey,
		"REDIS_PASSWORD": &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationOr accepts Go durations ("90s", "10m") or plain seconds.
func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
	return fallback
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
