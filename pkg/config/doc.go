// Package config loads typed configuration structs from environment
// variables.
//
// Struct fields are bound with caarlos0/env tags (env, envDefault, required).
// A .env file in the working directory is loaded once through
// joho/godotenv before the first parse; variables already present in the
// environment take precedence.
//
// Every component of the service owns its Config type (pg.Config,
// delivery.Config, entitlement.Config and so on). Load caches each type, so
// repeated calls return the same values without re-reading the environment.
//
//	var cfg struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//	config.MustLoad(&cfg)
package config
