package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	LocationID              string
	DashboardTTLSeconds     int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	RecommendProviderURL    string
	RecommendTimeoutSeconds int
	SearchMirrorURL         string
	ReinvestmentRate        float64
}

func Load() Config {
	// Missing .env is fine; containers inject real env vars directly.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	dashboardTTL, err := strconv.Atoi(getEnv("DASHBOARD_TTL_SECONDS", "60"))
	if err != nil || dashboardTTL < 1 {
		dashboardTTL = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	recommendTimeout, err := strconv.Atoi(getEnv("RECOMMEND_TIMEOUT_SECONDS", "10"))
	if err != nil || recommendTimeout < 1 {
		recommendTimeout = 10
	}
	reinvestmentRate, err := strconv.ParseFloat(getEnv("REINVESTMENT_RATE", "0.7"), 64)
	if err != nil || reinvestmentRate <= 0 || reinvestmentRate > 1 {
		reinvestmentRate = 0.7
	}

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		LocationID:              getEnv("DEFAULT_LOCATION_ID", "main"),
		DashboardTTLSeconds:     dashboardTTL,
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   tokenTTL,
		RecommendProviderURL:    strings.TrimSpace(os.Getenv("RECOMMEND_PROVIDER_URL")),
		RecommendTimeoutSeconds: recommendTimeout,
		SearchMirrorURL:         strings.TrimSpace(os.Getenv("SEARCH_MIRROR_URL")),
		ReinvestmentRate:        reinvestmentRate,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
