package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type DispatchConfig struct {
	Workers       int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	RatePerSec    int           `env:"DISPATCH_RATE_PER_SEC" envDefault:"0"`
	SendTimeout   time.Duration `env:"DISPATCH_SEND_TIMEOUT" envDefault:"10s"`
	SkipDelivered bool          `env:"DISPATCH_SKIP_DELIVERED" envDefault:"false"`
}

type APIConfig struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DBDSN         string `env:"DB_DSN,required,notEmpty"`
	RMQURL        string `env:"RMQ_URL,required,notEmpty"`
	OutboundQueue string `env:"OUTBOUND_QUEUE" envDefault:"outbound_messages"`
	ServiceURL    string `env:"CONNECTOR_SERVICE_URL,required,notEmpty"`
	BotID         string `env:"BOT_ID"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Dispatch DispatchConfig
}

type WorkerConfig struct {
	DBDSN    string `env:"DB_DSN,required,notEmpty"`
	RMQURL   string `env:"RMQ_URL,required,notEmpty"`
	AckQueue string `env:"ACK_QUEUE" envDefault:"ack_events"`
	Prefetch int    `env:"ACK_PREFETCH" envDefault:"16"`
	RetryMax int    `env:"ACK_RETRY_MAX" envDefault:"3"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	API    APIConfig
	Worker WorkerConfig
)

// LoadAPI reads the API configuration. A .env file in the working directory
// is applied first when present; real environment variables win.
func LoadAPI() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Dispatch.Workers < 1 {
		return cfg, fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.RatePerSec < 0 {
		return cfg, fmt.Errorf("DISPATCH_RATE_PER_SEC must not be negative, got %d", cfg.Dispatch.RatePerSec)
	}
	return cfg, nil
}

func LoadWorker() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.RetryMax < 0 {
		return cfg, fmt.Errorf("ACK_RETRY_MAX must not be negative, got %d", cfg.RetryMax)
	}
	return cfg, nil
}

func MustLoadAPI() {
	cfg, err := LoadAPI()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	API = cfg
}

func MustLoadWorker() {
	cfg, err := LoadWorker()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	Worker = cfg
}

func parse(target any) error {
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load()
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
