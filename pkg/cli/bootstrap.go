package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
)

// buildRetriever runs the one-time startup work behind a terminal spinner. Startup progress is
// logged at debug level, so the spinner is left out when debug logs would share its stream.
func buildRetriever(ctx context.Context, cfg *config, w io.Writer) (*retrieve.Retriever, error) {
	logger := logging.From(ctx)
	started := time.Now()

	var s *spinner.Spinner
	if !logger.Enabled(ctx, slog.LevelDebug) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		s.Suffix = " Building knowledge base..."
		s.Start()
	}

	retriever, err := cfg.newRetriever(ctx)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return nil, err
	}

	logger.Info("knowledge base ready",
		"source", cfg.data,
		"entries", len(retriever.Entries()),
		"elapsed", time.Since(started))

	return retriever, nil
}
