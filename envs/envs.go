package envs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Envs struct {
	PyroPort               string        `env:"PYRO_PORT" envDefault:"6379"`
	RespAddr               string        `env:"PYRO_RESP_ADDR" envDefault:""`
	HTTPAddr               string        `env:"PYRO_HTTP_ADDR" envDefault:""`
	PyroRootDirPath        string        `env:"PYRO_ROOT_DIR_PATH" envDefault:""`
	FlushInterval          time.Duration `env:"FLUSH_INTERVAL" envDefault:"10s"`
	SaveRules              []string      `env:"SAVE_RULES" envDefault:"900 1,300 10,60 10000"`
	DataExpirationInterval time.Duration `env:"DATA_EXPIRATION_INTERVAL" envDefault:"1m"`
	DefaultTTL             int64         `env:"DEFAULT_TTL" envDefault:"0"` // seconds, 0 = no expiration
	AuthUsername           string        `env:"AUTH_USERNAME" envDefault:"USER"`
	AuthPassword           string        `env:"AUTH_PASSWORD" envDefault:"PASS"`
	SnapshotBucket         string        `env:"SNAPSHOT_BUCKET" envDefault:""`
	SnapshotObject         string        `env:"SNAPSHOT_OBJECT" envDefault:"pyro.db"`
	LogLevel               string        `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		fmt.Printf("Warning: .env file not found, using default values\n")
	}
}

func Parse() (Envs, error) {
	var envs Envs

	if err := env.Parse(&envs); err != nil {
		return envs, err
	}
	if envs.FlushInterval <= 0 || envs.DataExpirationInterval <= 0 {
		return envs, fmt.Errorf("intervals must be positive")
	}
	if envs.DefaultTTL < 0 {
		return envs, fmt.Errorf("DEFAULT_TTL must not be negative")
	}
	return envs, nil
}

func Gets() Envs {
	envs, err := Parse()
	if err != nil {
		fmt.Printf("Error parsing env variables: %v\n", err)
		os.Exit(1)
	}

	return envs
}

func (e Envs) DefaultTTLDuration() time.Duration {
	return time.Duration(e.DefaultTTL) * time.Second
}

// Unknown levels fall back to info
func (e Envs) SlogLevel() slog.Level {
	switch strings.ToLower(e.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
