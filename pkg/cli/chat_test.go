package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/evrag/pkg/embedding"
	"github.com/m-mizutani/evrag/pkg/knowledge"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/chat"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// scriptedReader returns the given lines, then the terminal error
type scriptedReader struct {
	lines []string
	end   error
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", r.end
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

// failingRetriever fails every retrieval
type failingRetriever struct{}

func (failingRetriever) Retrieve(ctx context.Context, question string, k int) ([]*model.KnowledgeEntry, error) {
	return nil, goerr.New("embedding service unavailable")
}

func newTestSession(t *testing.T) *chat.Session {
	t.Helper()
	ctx := context.Background()

	records := []*model.VehicleRecord{
		{
			Columns: []string{"Make", "Model", "Electric Range"},
			Values:  map[string]string{"Make": "Tesla", "Model": "Model 3", "Electric Range": "250"},
		},
	}
	kb, err := knowledge.Build(records)
	gt.NoError(t, err)

	provider, err := embedding.NewHash(256)
	gt.NoError(t, err)
	r, err := retrieve.New(ctx, provider, kb)
	gt.NoError(t, err)

	return chat.New(chat.NewInput{Retriever: r, TopK: 3})
}

func TestRunChat(t *testing.T) {
	session := newTestSession(t)
	reader := &scriptedReader{
		lines: []string{
			"What is the range of a Tesla Model 3?",
			"",
			"How far can a Tesla go?",
			"exit",
			"never read",
		},
		end: io.EOF,
	}
	buf := &bytes.Buffer{}

	gt.NoError(t, runChat(context.Background(), session, reader, buf))

	output := buf.String()
	gt.S(t, output).Contains(chatTitle)
	gt.S(t, output).Contains("You: What is the range of a Tesla Model 3?")
	gt.S(t, output).Contains("You: How far can a Tesla go?")
	gt.Equal(t, strings.Count(output, "1. The Tesla Model 3 has an electric range of 250 miles"), 2)
	gt.S(t, output).NotContains("never read")

	gt.A(t, session.Turns()).Length(4)
	gt.A(t, reader.lines).Length(1)
}

func TestRunChatEOF(t *testing.T) {
	session := newTestSession(t)
	reader := &scriptedReader{
		lines: []string{"range of tesla"},
		end:   io.EOF,
	}
	buf := &bytes.Buffer{}

	gt.NoError(t, runChat(context.Background(), session, reader, buf))
	gt.S(t, buf.String()).Contains("Chat session completed")
	gt.A(t, session.Turns()).Length(2)
}

func TestRunChatInterrupt(t *testing.T) {
	session := newTestSession(t)
	reader := &scriptedReader{end: readline.ErrInterrupt}

	gt.NoError(t, runChat(context.Background(), session, reader, &bytes.Buffer{}))
	gt.A(t, session.Turns()).Length(0)
}

func TestRunChatHistory(t *testing.T) {
	session := newTestSession(t)
	reader := &scriptedReader{
		lines: []string{"first question", "second question", "/history"},
		end:   io.EOF,
	}
	buf := &bytes.Buffer{}

	gt.NoError(t, runChat(context.Background(), session, reader, buf))

	// each question is shown once when answered and once more by /history
	output := buf.String()
	gt.Equal(t, strings.Count(output, "You: first question"), 2)
	gt.Equal(t, strings.Count(output, "You: second question"), 2)
	gt.A(t, session.Turns()).Length(4)
}

func TestRunChatFailureContinues(t *testing.T) {
	logs := &bytes.Buffer{}
	ctx := logging.With(context.Background(), logging.New("debug", logs))

	session := chat.New(chat.NewInput{Retriever: failingRetriever{}})
	reader := &scriptedReader{
		lines: []string{"range of tesla", "range of leaf"},
		end:   io.EOF,
	}
	buf := &bytes.Buffer{}

	gt.NoError(t, runChat(ctx, session, reader, buf))

	output := buf.String()
	gt.Equal(t, strings.Count(output, "Assistant: Error: "), 2)
	gt.S(t, output).Contains("Chat session completed")
	gt.A(t, session.Turns()).Length(4)

	// one log line per failed question
	gt.Equal(t, strings.Count(logs.String(), "failed to answer question"), 2)
	gt.S(t, logs.String()).NotContains("question failed")
}
