package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/clock"
	"github.com/acmehealth/claimsight/internal/config"
	"github.com/acmehealth/claimsight/internal/migration"
	"github.com/acmehealth/claimsight/internal/observability"
	"github.com/acmehealth/claimsight/internal/server"
	"github.com/acmehealth/claimsight/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RegisterRedis returns nil when no address is configured; the refdata
// cache then runs memory-only.
func RegisterRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
