// Path: cmd/mediasearch/main.go
package main

import (
	"context"
	"os"

	"media-search/internal/config"
	"media-search/internal/domain"
	"media-search/internal/logging"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "mediasearch",
		Usage: "Paginated search over a media archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path (default ./configs/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			browseCommand(),
			searchCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logging.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up the global logger.
func loadConfig(c *cli.Command, format string) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if format == "" {
		format = cfg.Log.Format
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: format})
	return cfg, nil
}

func defaultQuery(cfg *config.Config) domain.Query {
	q := domain.DefaultQuery()
	q.PageSize = cfg.Search.DefaultPageSize
	if order, err := domain.ParseSortOrder(cfg.Search.DefaultSortOrder); err == nil {
		q.SortOrder = order
	}
	return q
}
