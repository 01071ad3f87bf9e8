package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

// StopDistancePolicy decides what happens when the nearest stop is farther
// than MaxStopDistanceM from the user.
type StopDistancePolicy string

const (
	// PolicyWarn keeps the update and attaches a distance warning.
	PolicyWarn StopDistancePolicy = "warn"
	// PolicyReject treats the cycle as "no stop nearby".
	PolicyReject StopDistancePolicy = "reject"
)

type Config struct {
	APIServerHost string `env:"API_SERVER_HOST"`
	APIServerPort string `env:"API_SERVER_PORT" envDefault:"8080"`

	TagoAPIKey  string `env:"TAGO_API_KEY" validate:"required"`
	TagoBaseURL string `env:"TAGO_BASE_URL" envDefault:"http://apis.data.go.kr/1613000"`

	RedisHost string `env:"REDIS_HOST"`
	RedisPort string `env:"REDIS_PORT" envDefault:"6379"`

	MaxStopDistanceM   float64            `env:"MAX_STOP_DISTANCE_M" envDefault:"50"`
	StopDistancePolicy StopDistancePolicy `env:"STOP_DISTANCE_POLICY" envDefault:"warn" validate:"oneof=warn reject"`

	Env Env `env:"ENV" envDefault:"prod"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
