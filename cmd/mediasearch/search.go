// Path: cmd/mediasearch/search.go
package main

import (
	"context"
	"fmt"
	"os"

	"media-search/internal/daterange"
	"media-search/internal/domain"
	"media-search/internal/mediaapi"
	"media-search/internal/presenter"
	"media-search/internal/query"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// searchCommand fetches a single page and prints it, without a session.
func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Fetch one page of results",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keyword", Usage: "Search keyword"},
			&cli.IntFlag{Name: "size", Usage: "Page size (default from config)"},
			&cli.StringFlag{Name: "sort", Usage: "asc or desc"},
			&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "End date (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "exact", Usage: "Exact keyword match"},
			&cli.StringSliceFlag{Name: "after", Usage: "searchAfter cursor values of the previous page"},
			&cli.BoolFlag{Name: "json", Usage: "Print the raw page as JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c, "console")
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			q := defaultQuery(cfg)
			q.Keyword = c.String("keyword")
			q.ExactMatch = c.Bool("exact")
			if size := c.Int("size"); size > 0 {
				q.PageSize = size
			}
			if raw := c.String("sort"); raw != "" {
				if q.SortOrder, err = domain.ParseSortOrder(raw); err != nil {
					return err
				}
			}
			if q.DateRange, err = daterange.Validate(c.String("start"), c.String("end")); err != nil {
				return err
			}

			page, err := mediaapi.NewClient(cfg.API).Search(ctx, query.Encode(q, domain.Cursor(c.StringSlice("after"))))
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(page)
			}

			fmt.Printf("Total Results: %d\n", page.TotalCount)
			for i, row := range presenter.Rows(page.Items) {
				fmt.Printf("%d. %s  %s  %s  %s\n   %s\n", i+1, row.Date, row.Title, row.Photographer, row.Dimensions, row.LargeURL)
			}
			if len(page.NextCursor) > 0 && len(page.Items) == q.PageSize {
				fmt.Printf("next: --after %s\n", joinCursor(page.NextCursor))
			}
			return nil
		},
	}
}

func joinCursor(c domain.Cursor) string {
	out := ""
	for i, v := range c {
		if i > 0 {
			out += " --after "
		}
		out += fmt.Sprintf("%q", v)
	}
	return out
}
