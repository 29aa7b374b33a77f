package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns int32  `envconfig:"DATABASE_MIN_CONNS" default:"2"`

	// Ranking: one weight pair shared by the semantic and keyword paths.
	SimilarityWeight float64 `envconfig:"SIMILARITY_WEIGHT" default:"0.7"`
	QualityWeight    float64 `envconfig:"QUALITY_WEIGHT" default:"0.3"`

	// Auto-verification thresholds.
	AutoVerifyMinUsage       int64   `envconfig:"AUTO_VERIFY_MIN_USAGE" default:"10"`
	AutoVerifyMinSuccessRate float64 `envconfig:"AUTO_VERIFY_MIN_SUCCESS_RATE" default:"0.7"`
	AutoVerifyMinNetUpvotes  int64   `envconfig:"AUTO_VERIFY_MIN_NET_UPVOTES" default:"5"`
	AutoVerifyMinScore       float64 `envconfig:"AUTO_VERIFY_MIN_SCORE" default:"0.6"`

	// Collaborative editing.
	EditLockTTL           time.Duration `envconfig:"EDIT_LOCK_TTL" default:"5m"`
	NotificationQueueSize int           `envconfig:"NOTIFICATION_QUEUE_SIZE" default:"64"`

	// Bootstrap: register an initial AI instance on startup.
	InitInstanceName string `envconfig:"INIT_INSTANCE_NAME"`
	InitAPIToken     string `envconfig:"INIT_API_TOKEN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AIFAI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.SimilarityWeight <= 0 || cfg.QualityWeight <= 0 {
		return nil, fmt.Errorf("ranking weights must be positive (similarity=%v quality=%v)", cfg.SimilarityWeight, cfg.QualityWeight)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
