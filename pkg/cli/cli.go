package cli

import (
	"context"

	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Version is set at build time
var Version = "dev"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := newApp()

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", logging.ErrAttr(err))
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "evrag",
		Usage:   "EV range assistant answering questions from an electric vehicle dataset",
		Version: Version,
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			entriesCommand(),
			mcpCommand(),
		},
	}
}
