package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"devfeed/aggregator"
	"devfeed/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

type fetchOutput struct {
	State models.StateEvent `json:"state"`
	Stats models.Stats      `json:"stats"`
	Feed  models.FeedView   `json:"feed"`
}

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Run a single fetch cycle and print the feed as JSON",
		Description: `Runs one fetch cycle over the source chain and prints the resulting
state, statistics and filtered sections as a single JSON object.

Use a tool like jq to process the output.

Prints all log messages to stderr.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Category to filter the sections by",
				Value:   "all",
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the JSON output
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			agg, err := newAggregator(cfg)
			if err != nil {
				return err
			}

			filter := ctx.String("filter")
			if !agg.Categories().Has(filter) {
				return fmt.Errorf("unknown category %q, expected one of %v", filter, agg.Categories().Names())
			}
			agg.SetFilter(filter)

			if err := agg.Refresh(ctx.Context); err != nil {
				if errors.Is(err, aggregator.ErrSourcesExhausted) {
					return cli.Exit(aggregator.ExhaustedMessage, 1)
				}
				return err
			}

			out, err := json.Marshal(fetchOutput{
				State: agg.Snapshot(),
				Stats: agg.Stats(),
				Feed:  agg.View(),
			})
			if err != nil {
				return fmt.Errorf("could not encode feed: %w", err)
			}
			fmt.Fprintln(ctx.App.Writer, string(out))
			return nil
		},
	}
}
