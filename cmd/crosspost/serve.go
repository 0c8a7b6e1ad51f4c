package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/crosspost-labs/crosspost/pkg/api"
	"github.com/crosspost-labs/crosspost/pkg/config"
	"github.com/crosspost-labs/crosspost/pkg/connect"
	"github.com/crosspost-labs/crosspost/pkg/session"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OAuth backend",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("unable to load configuration", "error", err)
			os.Exit(1)
		}

		var store session.Store
		var cache session.PendingCache
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := client.Ping(context.Background()).Err(); err != nil {
				slog.Error("unable to reach redis", "addr", cfg.RedisAddr, "error", err)
				os.Exit(1)
			}
			store = session.NewRedisStore(client, cfg.SessionTTL)
			cache = session.NewRedisPendingCache(client, cfg.PendingTTL)
			slog.Info("using redis stores", "addr", cfg.RedisAddr)
		} else {
			store = session.NewMemoryStore()
			cache = session.NewMemoryPendingCache(cfg.PendingTTL, nil)
			slog.Info("using in-memory stores")
		}

		registry := connect.NewRegistry(cfg, cache)
		server := api.NewServer(cfg, registry, store)

		e := echo.New()
		e.HideBanner = true
		server.MountRoutes(e)

		slog.Info("starting crosspost backend", "addr", cfg.Addr, "providers", registry.Providers())
		e.Logger.Fatal(e.Start(cfg.Addr))
	},
}
