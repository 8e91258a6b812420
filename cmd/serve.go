package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"devfeed/aggregator"
	"devfeed/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the devfeed API",
		Description: `Starts the devfeed HTTP API and refreshes the feed periodically.

The first fetch cycle starts immediately. Failed cycles are retried with
exponential backoff, capped at the refresh interval. State changes are
pushed to clients over server-sent events on /api/events.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Host to listen on",
				EnvVars: []string{"DEVFEED_HOST"},
				Value:   "0.0.0.0",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"DEVFEED_PORT"},
				Value:   3000,
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "Time between fetch cycles, overrides the config file",
				EnvVars: []string{"DEVFEED_REFRESH_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("refresh-interval") {
				cfg.RefreshInterval = ctx.Duration("refresh-interval")
			}
			if cfg.RefreshInterval <= 0 {
				return fmt.Errorf("refresh interval must be positive, got %s", cfg.RefreshInterval)
			}

			agg, err := newAggregator(cfg)
			if err != nil {
				return err
			}

			bc := server.NewBroadcaster()
			agg.AddObserver(bc)

			runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := server.Server(&server.ServerConfig{
				Context:     runCtx,
				Aggregator:  agg,
				Broadcaster: bc,
				CorsOrigins: cfg.CorsOrigins,
			})

			go agg.Run(runCtx, cfg.RefreshInterval, aggregator.RetryBackOff(cfg.RefreshInterval))

			go func() {
				<-runCtx.Done()
				log.Info("Gracefully shutting down...")
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.WithError(err).Error("Error shutting down server")
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"address":          addr,
				"sources":          len(cfg.Sources),
				"refresh_interval": cfg.RefreshInterval,
			}).Info("Starting devfeed server")

			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		},
	}
}
