package cli

import (
	"context"

	"github.com/m-mizutani/evrag/pkg/service/mcp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the retrieve tool over MCP stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			// stdout carries the protocol, so no spinner here
			retriever, err := cfg.newRetriever(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to prepare knowledge base")
			}

			server, err := mcp.NewServer(retriever, int(cfg.topK), Version)
			if err != nil {
				return err
			}

			return server.Run(ctx)
		},
	}
}
