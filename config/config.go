package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	App struct {
		Name string
		Port string
	}

	Auth struct {
		JWTSecret string
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Kafka struct {
		Enabled bool
		Brokers []string
	}

	Judge struct {
		BaseURL string
		APIKey  string
		APIHost string
		Timeout time.Duration
	}

	Duel struct {
		Duration       time.Duration
		EvictionGrace  time.Duration
		ForceMatchSize int
		WinXP          int
		ForfeitWinXP   int
		LossXP         int
	}

	RateLimit struct {
		Requests int
		Window   time.Duration
	}
}

var Config AppConfig

func InitConfig(DevMode bool) *AppConfig {
	if DevMode {
		if err := godotenv.Load(); err != nil {
			log.Error().Err(err).Msg("Error loading .env file")
		}
	}

	Config.App.Name = getEnv("APP_NAME", "CDeX-Duel-Service")
	Config.App.Port = getEnv("PORT", "6002")

	Config.Auth.JWTSecret = getEnv("JWT_SECRET", "")

	Config.Redis.Host = getEnv("REDIS_HOST", "localhost")
	Config.Redis.Port = getEnvAsInt("REDIS_PORT", 6379)
	Config.Redis.Password = getEnv("REDIS_PASSWORD", "")
	Config.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	Config.Kafka.Enabled = getEnv("KAFKA_ENABLED", "true") == "true"
	Config.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	Config.Judge.BaseURL = getEnv("JUDGE0_API_URL", "https://judge0-ce.p.rapidapi.com")
	Config.Judge.APIKey = getEnv("JUDGE0_API_KEY", "")
	Config.Judge.APIHost = getEnv("JUDGE0_API_HOST", "judge0-ce.p.rapidapi.com")
	Config.Judge.Timeout = time.Duration(getEnvAsInt("JUDGE0_TIMEOUT_SECONDS", 30)) * time.Second

	Config.Duel.Duration = time.Duration(getEnvAsInt("DUEL_DURATION_MINUTES", 15)) * time.Minute
	Config.Duel.EvictionGrace = time.Duration(getEnvAsInt("DUEL_EVICTION_GRACE_SECONDS", 5)) * time.Second
	Config.Duel.ForceMatchSize = getEnvAsInt("QUEUE_FORCE_MATCH_SIZE", 4)
	Config.Duel.WinXP = getEnvAsInt("DUEL_WIN_XP", 200)
	Config.Duel.ForfeitWinXP = getEnvAsInt("DUEL_FORFEIT_WIN_XP", 150)
	Config.Duel.LossXP = getEnvAsInt("DUEL_LOSS_XP", 50)

	Config.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 60)
	Config.RateLimit.Window = time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second

	return &Config
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return fallback
}
