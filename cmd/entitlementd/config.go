package main

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
	"github.com/dmitrymomot/entitlement/pkg/config"
	"github.com/dmitrymomot/entitlement/pkg/delivery"
	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/httpserver"
	"github.com/dmitrymomot/entitlement/pkg/keylock"
	"github.com/dmitrymomot/entitlement/pkg/logger"
	"github.com/dmitrymomot/entitlement/pkg/pg"
	"github.com/dmitrymomot/entitlement/pkg/redis"
)

// appConfig aggregates the configuration of every component.
type appConfig struct {
	Log      logger.Config
	Engine   entitlement.Config
	Catalog  catalog.Config
	Delivery delivery.Config
	Lock     keylock.Config
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
}

func loadConfig(flags *rootFlags) (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg, config.WithEnvFiles(flags.envFiles...)); err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	return cfg, nil
}

// setup loads configuration and installs the default logger.
func setup(flags *rootFlags) (appConfig, *slog.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return appConfig{}, nil, err
	}
	log, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		return appConfig{}, nil, err
	}
	logger.SetAsDefault(log)
	return cfg, log, nil
}
