package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database (optional, history is kept in memory when empty)
	DatabaseURL string

	// Redis (optional, locks and events stay in-process when empty)
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiRequestsPerMin int
	GeminiConcurrentReqs int

	// Chat
	MaxUploadMB         int
	ChatRateLimitPerMin int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY", "API_KEY"),
		GeminiRequestsPerMin: getEnvAsIntOrDefault("GEMINI_REQUESTS_PER_MINUTE", 60),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		MaxUploadMB:          getEnvAsIntOrDefault("MAX_UPLOAD_MB", 10),
		ChatRateLimitPerMin:  getEnvAsIntOrDefault("CHAT_RATE_LIMIT_PER_MINUTE", 20),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// MaxUploadBytes is the multipart body limit for the messages endpoint.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ResolveAPIKey picks the key for the command-line client: the flag value,
// then API_KEY, then GEMINI_API_KEY. Returns "" when none is set.
func ResolveAPIKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	godotenv.Load()
	return firstEnv("API_KEY", "GEMINI_API_KEY")
}

// mustGetEnv returns the first non-empty variable among keys and panics
// when none is set.
func mustGetEnv(keys ...string) string {
	val := firstEnv(keys...)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", keys[0]))
	}
	return val
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
