package cmd

import (
	"fmt"
	"strings"

	"devfeed/config"
	"devfeed/feeds"

	"github.com/urfave/cli/v2"
)

func categoriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List the filter categories and their keywords",
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			categories := feeds.NewCategories(cfg.Keywords)
			for _, name := range categories.Names() {
				keywords := categories[name]
				if name == config.AllCategory || len(keywords) == 0 {
					fmt.Fprintf(ctx.App.Writer, "%-10s every post\n", name)
					continue
				}
				fmt.Fprintf(ctx.App.Writer, "%-10s %s\n", name, strings.Join(keywords, ", "))
			}
			return nil
		},
	}
}
