package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/appserver/core/config"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/server"
	"github.com/dmitrymomot/appserver/middleware"
)

// serveConfig is everything serve reads from the environment.
type serveConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Server server.Config
}

func serveCmd() *cobra.Command {
	var (
		serverConf  string
		webConf     string
		workDir     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deploy applications and serve until interrupted",
		Long: `Load the server descriptor, deploy every host's applications and
listen on every configured connector until SIGINT or SIGTERM.

Settings come from the environment (and a .env file when present);
flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg serveConfig
			if err := config.Load(&cfg); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if cmd.Flags().Changed("server-conf") {
				cfg.Server.ServerConf = serverConf
			}
			if cmd.Flags().Changed("web-conf") {
				cfg.Server.WebConf = webConf
			}
			if cmd.Flags().Changed("work-dir") {
				cfg.Server.WorkDir = workDir
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&serverConf, "server-conf", server.DefaultServerConf, "Server descriptor path")
	cmd.Flags().StringVar(&webConf, "web-conf", server.DefaultWebConf, "Application defaults path")
	cmd.Flags().StringVar(&workDir, "work-dir", server.DefaultWorkDir, "Directory for compiled pages")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address of the Prometheus listener, empty to disable")

	return cmd
}

func serve(parent context.Context, cfg serveConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.New(
		logger.WithLevelName(cfg.LogLevel),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithOutput(os.Stderr),
		logger.WithService("appserver"),
	)

	units := scope.Process()
	if err := middleware.Register(units); err != nil {
		return fmt.Errorf("register interceptors: %w", err)
	}

	srv, err := server.NewFromConfig(cfg.Server,
		server.WithLogger(log),
		server.WithUnits(units),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx)(); err != nil {
		log.Error("server exited", logger.Error(err))
		return err
	}
	return nil
}
