package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/evrag/pkg/usecase/chat"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	chatTitle  = "EV Range Assistant (RAG)"
	chatPrompt = "Ask about EVs... > "
)

// lineReader is the subset of readline.Instance used by the chat loop
type lineReader interface {
	Readline() (string, error)
}

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive question answering over the EV dataset",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			retriever, err := buildRetriever(ctx, &cfg, c.Root().ErrWriter)
			if err != nil {
				return goerr.Wrap(err, "failed to prepare knowledge base")
			}

			session := chat.New(chat.NewInput{
				Retriever: retriever,
				TopK:      int(cfg.topK),
			})
			logging.From(ctx).Info("chat session started",
				"session_id", session.ID(),
				"entries", len(retriever.Entries()))

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          chatPrompt,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize line reader")
			}
			defer rl.Close()

			return runChat(ctx, session, rl, c.Root().Writer)
		},
	}
}

// runChat reads questions until exit and renders the transcript as it grows
func runChat(ctx context.Context, session *chat.Session, reader lineReader, w io.Writer) error {
	fmt.Fprintf(w, "%s\n", chatTitle)
	fmt.Fprintf(w, "Type 'exit' to quit, '/history' to show the whole conversation.\n\n")

	rendered := 0
loop:
	for {
		line, err := reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			break loop
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		question := strings.TrimSpace(line)
		switch question {
		case "":
			continue
		case "exit", "quit":
			break loop
		case "/history":
			if err := session.Render(w); err != nil {
				return err
			}
			continue
		}

		// Session records and logs a failure as an assistant turn; the loop goes on
		_, _ = session.Ask(ctx, line)

		rendered, err = session.RenderFrom(w, rendered)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nChat session completed\n")
	return nil
}
