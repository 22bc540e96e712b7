package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func entriesCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of entries to display (0 for all)",
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "entries",
		Usage: "Show the sentences generated from the dataset",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			kb, err := cfg.newKnowledgeBase(ctx)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for i, entry := range kb {
				if limit > 0 && int64(i) >= limit {
					break
				}
				fmt.Fprintf(w, "%d. %s\n", i+1, entry.Text)
			}
			fmt.Fprintf(w, "\n%d entries\n", len(kb))
			return nil
		},
	}
}
