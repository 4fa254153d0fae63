package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-desk/internal/api/http"
	"github.com/spec-kit/presence-desk/internal/api/http/handlers"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/relay"
)

func relayCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the webhook relay and event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile, "relay")
			if err != nil {
				return err
			}
			defer rt.logger.Sync() //nolint:errcheck
			return runRelay(cmd.Context(), rt)
		},
	}
}

func runRelay(parent context.Context, rt *process) error {
	cfg := rt.cfg
	logger := rt.logger

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	hub := relay.NewHub(cfg.Relay.HistorySize, cfg.Relay.ReplaySize, cfg.Relay.ClientBuffer, logger.Named("hub"), rt.metrics)

	checks := map[string]handlers.Pinger{}
	var broker relay.Broker = relay.NewLocalBroker(hub)
	if cfg.Redis.Enabled {
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		broker = relay.NewRedisBroker(rdb.Client, cfg.Relay.RedisChannel, hub, logger.Named("broker"))
		checks["redis"] = rdb
	}
	go func() {
		if err := broker.Run(ctx); err != nil {
			logger.Error("relay broker stopped", zap.Error(err))
		}
	}()

	app := newApp(rt)
	httptransport.RegisterMiddlewares(app, logger, rt.metrics, 0)
	httptransport.RegisterRelayRoutes(app, httptransport.RelayRouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name+"-relay", cfg.App.Version, checks),
		Relay:   handlers.NewRelayHandler(ctx, hub, broker, cfg.Relay.Keepalive, logger.Named("http"), rt.metrics),
		Metrics: rt.metrics,
	})

	// Event streams only end once ctx is cancelled.
	return serve(app, cfg.Relay.Addr(), logger, cancel)
}
