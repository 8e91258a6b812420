package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"devfeed/aggregator"
	"devfeed/models"
	"devfeed/render"

	"github.com/cqroot/prompt"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	actionOpen     = "Open a post"
	actionFilter   = "Change filter"
	actionRefresh  = "Refresh"
	actionQuit     = "Quit"
	choiceBackHome = "Back"
)

func browseCmd() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse the feed interactively in the terminal",
		Description: `Fetches the feed and shows the new, top and hot sections.

Pick a post to see its details, switch the category filter or refresh
the feed. Changing the filter never refetches.`,
		Action: func(ctx *cli.Context) error {
			if !ctx.IsSet("log-level") {
				log.SetLevel(log.WarnLevel)
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			agg, err := newAggregator(cfg)
			if err != nil {
				return err
			}

			b := &browser{agg: agg, out: ctx.App.Writer}
			b.refresh(ctx)

			err = b.loop(ctx)
			if errors.Is(err, prompt.ErrUserQuit) {
				return nil
			}
			return err
		},
	}
}

type browser struct {
	agg *aggregator.Aggregator
	out io.Writer
}

func (b *browser) loop(ctx *cli.Context) error {
	for {
		b.show()

		action, err := prompt.New().Ask("What next?").Choose([]string{
			actionOpen, actionFilter, actionRefresh, actionQuit,
		})
		if err != nil {
			return err
		}

		switch action {
		case actionOpen:
			if err := b.open(); err != nil {
				return err
			}
		case actionFilter:
			category, err := prompt.New().Ask("Category:").Choose(b.agg.Categories().Names())
			if err != nil {
				return err
			}
			b.agg.SetFilter(category)
		case actionRefresh:
			b.refresh(ctx)
		case actionQuit:
			return nil
		}
	}
}

func (b *browser) refresh(ctx *cli.Context) {
	fmt.Fprintln(b.out, "Loading posts...")
	if err := b.agg.Refresh(ctx.Context); err != nil {
		log.WithError(err).Debug("Refresh failed")
	}
}

func (b *browser) show() {
	state := b.agg.Snapshot()
	now := time.Now()

	switch state.Status {
	case models.StatusError:
		fmt.Fprintf(b.out, "\n%s\n", state.Message)
		// previous content, if any, is still shown below
		if state.UpdatedAt.IsZero() {
			return
		}
	case models.StatusLoading:
		fmt.Fprintln(b.out, "Loading posts...")
		return
	}

	fmt.Fprintf(b.out, "\n%s  (source: %s, updated %s)\n\n",
		render.Stats(b.agg.Stats()), state.Source, render.RelativeTime(state.UpdatedAt.Format(time.RFC3339), now))
	fmt.Fprintln(b.out, render.View(b.agg.View(), now))
}

// open lets the user pick one of the visible posts and prints its details
func (b *browser) open() error {
	view := b.agg.View()
	now := time.Now()

	choices := []string{}
	byChoice := map[string]models.Post{}
	for _, ranking := range models.Rankings {
		for i, post := range view.Get(ranking) {
			choice := fmt.Sprintf("[%s %d] %s", ranking, i+1, render.Label(post, now))
			choices = append(choices, choice)
			byChoice[choice] = post
		}
	}

	if len(choices) == 0 {
		fmt.Fprintln(b.out, render.EmptySection)
		return nil
	}

	choice, err := prompt.New().Ask("Post:").Choose(append(choices, choiceBackHome))
	if err != nil {
		return err
	}
	post, ok := byChoice[choice]
	if !ok {
		return nil
	}

	// look the post up again in case a refresh replaced the buckets
	if current, found := b.agg.Post(post.ID); found {
		post = current
	}
	fmt.Fprintf(b.out, "\n%s\n", render.Detail(post, now))
	return nil
}
