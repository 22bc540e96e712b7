package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Preamble is the first line of every answer
const Preamble = "Based on our database:"

var ErrEmptyQuestion = goerr.New("question is empty")

// Retriever finds the knowledge entries that answer a question
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]*model.KnowledgeEntry, error)
}

type State int

const (
	AwaitingInput State = iota
	RenderingResponse
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case RenderingResponse:
		return "rendering_response"
	default:
		return "unknown"
	}
}

// Session keeps the transcript of one conversation. Turns are only appended. Questions are
// answered independently of earlier turns.
type Session struct {
	id        model.SessionID
	retriever Retriever
	topK      int
	now       func() time.Time

	state atomic.Int32

	mu         sync.Mutex
	transcript []model.Turn
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	Retriever Retriever
	TopK      int // retrieve.DefaultTopK when zero

	// Now is used for turn timestamps. time.Now when nil.
	Now func() time.Time
}

func New(input NewInput) *Session {
	topK := input.TopK
	if topK <= 0 {
		topK = retrieve.DefaultTopK
	}
	now := input.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		id:        model.NewSessionID(),
		retriever: input.Retriever,
		topK:      topK,
		now:       now,
	}
	s.state.Store(int32(AwaitingInput))
	return s
}

func (s *Session) ID() model.SessionID {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Ask records the question as typed, retrieves the answer for the trimmed question and records
// it. On a retrieval failure an assistant turn describing the error is recorded, the failure is
// logged and the error is returned.
func (s *Session) Ask(ctx context.Context, question string) (*model.Turn, error) {
	query := strings.TrimSpace(question)
	if query == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Store(int32(RenderingResponse))
	defer s.state.Store(int32(AwaitingInput))

	logger := logging.From(ctx).With("session_id", s.id)
	s.appendTurn(model.RoleUser, question)

	entries, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		logger.Error("failed to answer question", logging.ErrAttr(err))
		turn := s.appendTurn(model.RoleAssistant, "Error: "+err.Error())
		return &turn, goerr.Wrap(err, "failed to retrieve answer", goerr.V("session_id", s.id))
	}

	turn := s.appendTurn(model.RoleAssistant, FormatAnswer(entries))
	logger.Debug("question answered", "entries", len(entries), "turns", len(s.transcript))

	return &turn, nil
}

func (s *Session) appendTurn(role model.Role, text string) model.Turn {
	turn := model.Turn{
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.transcript = append(s.transcript, turn)
	return turn
}

// Turns returns a copy of the transcript in chronological order
func (s *Session) Turns() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]model.Turn, len(s.transcript))
	copy(turns, s.transcript)
	return turns
}

// Render writes the full transcript in chronological order
func (s *Session) Render(w io.Writer) error {
	_, err := s.RenderFrom(w, 0)
	return err
}

// RenderFrom writes the turns starting at offset and returns the offset following the last
// written turn
func (s *Session) RenderFrom(w io.Writer, offset int) (int, error) {
	turns := s.Turns()
	if offset < 0 {
		offset = 0
	}
	if offset > len(turns) {
		offset = len(turns)
	}

	for _, turn := range turns[offset:] {
		if err := renderTurn(w, turn); err != nil {
			return offset, err
		}
		offset++
	}
	return offset, nil
}

func renderTurn(w io.Writer, turn model.Turn) error {
	var label string
	switch turn.Role {
	case model.RoleUser:
		label = "You"
	case model.RoleAssistant:
		label = "Assistant"
	default:
		label = string(turn.Role)
	}

	if _, err := fmt.Fprintf(w, "%s: %s\n\n", label, strings.TrimRight(turn.Text, "\n")); err != nil {
		return goerr.Wrap(err, "failed to render turn")
	}
	return nil
}

// FormatAnswer renders entries as the preamble followed by a 1-indexed list of entry texts
func FormatAnswer(entries []*model.KnowledgeEntry) string {
	var b strings.Builder
	b.WriteString(Preamble)
	b.WriteString("\n\n")
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry.Text)
	}
	return b.String()
}
