// Path: cmd/mediasearch/browse.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-search/internal/delivery/terminal"
	"media-search/internal/events"
	"media-search/internal/logging"
	"media-search/internal/mediaapi"
	"media-search/internal/service"

	"github.com/urfave/cli/v3"
)

func browseCommand() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Search interactively from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "keyword",
				Usage: "Initial search keyword",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c, "console")
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			q := defaultQuery(cfg)
			q.Keyword = c.String("keyword")

			broker := events.NewBroker()
			ctrl := service.NewController(logging.GenerateRequestID(), mediaapi.NewClient(cfg.API),
				service.WithQuery(q),
				service.WithPageSizes(cfg.Search.PageSizes),
				service.WithPublisher(broker),
			)
			defer ctrl.Close()

			return terminal.NewBrowser(ctrl, broker, os.Stdin, os.Stdout).Run(ctx)
		},
	}
}
