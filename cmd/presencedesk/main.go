package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
	"github.com/spec-kit/presence-desk/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "presencedesk",
		Short:         "Presence and ticket desk for the clinic issue tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "application config file (yaml or json); overrides APP_CONFIG_FILE")

	rootCmd.AddCommand(deskCmd(&configFile))
	rootCmd.AddCommand(relayCmd(&configFile))
	rootCmd.AddCommand(statusesCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// process is the state shared by every command.
type process struct {
	cfg      *config.Config
	resolver *config.Resolver
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func bootstrap(configFile, component string) (*process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if configFile != "" {
		cfg.Tracker.ConfigFile = configFile
	}

	logger, err := observability.NewLogger(cfg.Logger, component)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	resolver, err := config.LoadResolver(cfg.Tracker.ConfigFile)
	if err != nil {
		logger.Warn("application config unreadable; using defaults",
			zap.String("file", cfg.Tracker.ConfigFile), zap.Error(err))
		resolver = config.NewResolver(nil)
	}

	return &process{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger,
		metrics:  observability.NewMetrics("presence_desk"),
	}, nil
}

func newApp(rt *process) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               rt.cfg.App.Name,
		DisableStartupMessage: true,
	})
}

// serve runs app on addr until SIGINT/SIGTERM, then calls stopping and shuts
// the server down.
func serve(app *fiber.App, addr string, logger *zap.Logger, stopping func()) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	if stopping != nil {
		stopping()
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}
