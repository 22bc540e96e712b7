package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg          config
		showDistance bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "distance",
			Usage:       "Show the squared L2 distance of every entry",
			Destination: &showDistance,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return chat.ErrEmptyQuestion
			}

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			retriever, err := buildRetriever(ctx, &cfg, c.Root().ErrWriter)
			if err != nil {
				return goerr.Wrap(err, "failed to prepare knowledge base")
			}

			results, err := retriever.Search(ctx, question, int(cfg.topK))
			if err != nil {
				return goerr.Wrap(err, "failed to answer question", goerr.V("question", question))
			}

			w := c.Root().Writer
			if !showDistance {
				entries := make([]*model.KnowledgeEntry, len(results))
				for i, result := range results {
					entries[i] = result.Entry
				}
				fmt.Fprint(w, chat.FormatAnswer(entries))
				return nil
			}

			fmt.Fprintf(w, "%s\n\n", chat.Preamble)
			for i, result := range results {
				fmt.Fprintf(w, "%d. %s (distance: %.4f)\n", i+1, result.Entry.Text, result.Distance)
			}
			return nil
		},
	}
}
