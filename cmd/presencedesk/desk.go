package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/presence-desk/internal/api/http"
	"github.com/spec-kit/presence-desk/internal/api/http/handlers"
	"github.com/spec-kit/presence-desk/internal/auth"
	"github.com/spec-kit/presence-desk/internal/events"
	"github.com/spec-kit/presence-desk/internal/notify"
	"github.com/spec-kit/presence-desk/internal/persistence"
	"github.com/spec-kit/presence-desk/internal/repository"
	"github.com/spec-kit/presence-desk/internal/service"
	"github.com/spec-kit/presence-desk/internal/tracker"
	"github.com/spec-kit/presence-desk/internal/worker"
)

func deskCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "desk",
		Short: "Run the desk agent HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile, "desk")
			if err != nil {
				return err
			}
			defer rt.logger.Sync() //nolint:errcheck
			return runDesk(cmd.Context(), rt)
		},
	}
}

func runDesk(parent context.Context, rt *process) error {
	cfg := rt.cfg
	logger := rt.logger

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	settings := rt.resolver.TrackerSettings()
	if err := settings.Validate(); err != nil {
		// Login reports the same error to the UI; the desk still starts.
		logger.Warn("tracker configuration incomplete", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	checks := map[string]handlers.Pinger{}
	var journal *service.Journal
	if pool := pg.PoolHandle(); pool != nil {
		journal = service.NewJournal(repository.NewTransitionRepository(pool), logger.Named("journal"))
		checks["postgres"] = pg
	} else {
		journal = service.NewJournal(nil, logger.Named("journal"))
	}

	var stores persistence.SessionStores = persistence.NewMemoryStores()
	if cfg.Redis.Enabled {
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		stores = persistence.NewRedisStores(rdb.Client, cfg.Redis.SessionTTL)
		checks["redis"] = rdb
	}

	client := tracker.NewClient(settings, cfg.Desk.TrackerTimeout, logger.Named("tracker"), rt.metrics)
	dispatcher := events.NewInMemoryDispatcher()

	sound := cfg.Sound
	desks := service.NewDeskManager(service.DeskDependencies{
		Client:     client,
		Settings:   settings,
		Identity:   service.NewIdentityService(client, settings, logger.Named("identity")),
		Stores:     stores,
		Dispatcher: dispatcher,
		Journal:    journal,
		Tiers: func(board *notify.Board) []notify.Tier {
			return []notify.Tier{
				notify.NewBufferTier(sound.File, sound.BufferCommand, notify.ExecRunner),
				notify.NewOneShotTier(sound.File, sound.PlayCommand, notify.ExecRunner),
				notify.NewFlashTier(board),
			}
		},
		Config:  cfg.Desk,
		Logger:  logger,
		Metrics: rt.metrics,
	})
	defer desks.Close()

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, desks, logger.Named("notifications")), logger)
	worker.StartInboxPoller(ctx, desks, cfg.Desk.PollInterval, logger.Named("poller"))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := newApp(rt)
	httptransport.RegisterMiddlewares(app, logger, rt.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterDeskRoutes(app, httptransport.DeskRouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Session:        handlers.NewSessionHandler(desks, tokens),
		Presence:       handlers.NewPresenceHandler(),
		Tickets:        handlers.NewTicketsHandler(),
		Notifications:  handlers.NewNotificationsHandler(journal),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, desks),
		Metrics:        rt.metrics,
	})

	return serve(app, cfg.App.Addr(), logger, cancel)
}
