package mcp

import (
	"context"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/chat"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ToolName = "retrieve"

// Searcher returns entries nearest to a question together with their distances
type Searcher interface {
	Search(ctx context.Context, question string, k int) ([]*retrieve.Result, error)
}

type retrieveInput struct {
	Question string `json:"question" jsonschema:"Free-text question about electric vehicles"`
	K        int    `json:"k,omitempty" jsonschema:"Number of entries to return (default 3)"`
}

type retrieveHit struct {
	Rank     int               `json:"rank"`
	Text     string            `json:"text"`
	Distance float32           `json:"distance"`
	Data     map[string]string `json:"data"`
}

type retrieveOutput struct {
	Answer  string        `json:"answer"`
	Results []retrieveHit `json:"results"`
}

// Server exposes knowledge retrieval as an MCP tool
type Server struct {
	searcher Searcher
	topK     int
	server   *mcp.Server
}

func NewServer(searcher Searcher, topK int, version string) (*Server, error) {
	if topK <= 0 {
		topK = retrieve.DefaultTopK
	}

	inputSchema, err := jsonschema.For[retrieveInput](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate input schema")
	}

	s := &Server{
		searcher: searcher,
		topK:     topK,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "evrag",
			Version: version,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolName,
		Description: "Find electric vehicle facts most similar to a question, nearest first",
		InputSchema: inputSchema,
	}, s.handleRetrieve)

	return s, nil
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until the client disconnects or ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

func (s *Server) handleRetrieve(ctx context.Context, req *mcp.CallToolRequest, input retrieveInput) (*mcp.CallToolResult, retrieveOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, retrieveOutput{}, chat.ErrEmptyQuestion
	}
	if input.K < 0 {
		return nil, retrieveOutput{}, goerr.New("k must not be negative", goerr.V("k", input.K))
	}

	k := input.K
	if k == 0 {
		k = s.topK
	}

	results, err := s.searcher.Search(ctx, question, k)
	if err != nil {
		logging.From(ctx).Error("retrieve tool failed", logging.ErrAttr(err))
		return nil, retrieveOutput{}, err
	}

	entries := make([]*model.KnowledgeEntry, len(results))
	output := retrieveOutput{Results: make([]retrieveHit, len(results))}
	for i, result := range results {
		entries[i] = result.Entry

		// output schema requires data to be an object
		data := result.Entry.Data
		if data == nil {
			data = map[string]string{}
		}
		output.Results[i] = retrieveHit{
			Rank:     i + 1,
			Text:     result.Entry.Text,
			Distance: result.Distance,
			Data:     data,
		}
	}
	output.Answer = chat.FormatAnswer(entries)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: output.Answer},
		},
	}, output, nil
}
