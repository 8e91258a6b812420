package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "devfeed",
		Usage: "A feed of developer posts gathered from public sources",
		Description: `Devfeed fetches recent developer related posts from a chain of
		sources and shows them in three sections: new, top and hot.

		Sources are tried in order until one returns posts. When every source
		is down the last successful result stays visible.

		Flags can generally be set via environment variables, e.g.:

		--config => DEVFEED_CONFIG=devfeed.toml
		--api-key => DEVFEED_API_KEY=...
		--port => DEVFEED_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file, built-in defaults are used when empty",
				EnvVars: []string{"DEVFEED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key sent as bearer token to sources with auth enabled",
				EnvVars: []string{"DEVFEED_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "bsky-handle",
				Usage:   "Bluesky handle used to search through an authenticated session",
				EnvVars: []string{"DEVFEED_BSKY_HANDLE"},
			},
			&cli.StringFlag{
				Name:    "bsky-password",
				Usage:   "Bluesky app password",
				EnvVars: []string{"DEVFEED_BSKY_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"DEVFEED_LOG_LEVEL"},
				Value:   "info",
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			browseCmd(),
			categoriesCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
