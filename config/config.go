// Package config loads runtime configuration from the environment with
// sane local-development defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"marketmatch/pkg/database"
)

type Config struct {
	ServerAddr string
	RedisURL   string
	CacheTTL   time.Duration
	Database   database.Config
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("marketmatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl_seconds", 900)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "marketmatch")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")

	return &Config{
		ServerAddr: v.GetString("server.addr"),
		RedisURL:   v.GetString("redis.url"),
		CacheTTL:   time.Duration(v.GetInt("cache.ttl_seconds")) * time.Second,
		Database: database.Config{
			Host:     v.GetString("db.host"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			Port:     v.GetString("db.port"),
			SSLMode:  v.GetString("db.sslmode"),
			TimeZone: v.GetString("db.timezone"),
		},
	}, nil
}
