package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "v0.1.0"

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. Answerer and Index are optional:
// without an Answerer the ask tool is not registered.
type Config struct {
	Store     DocumentStore
	Assembler ContextAssembler
	Answerer  QuestionAnswerer
	Index     PointCounter
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "docqa",
		Version: Version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every processed document with its id, file name, type and chunk count.",
	}, makeListHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document_content",
		Description: "Retrieve a processed document by id, including all of its chunks. Returns found=false for unknown ids.",
	}, makeGetHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Keyword search across all processed documents. Returns the best matching chunks with their similarity.",
	}, makeSearchHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assemble_context",
		Description: "Build grounded context for a question from the selected documents. State grounded_refusal means the documents hold nothing relevant and the answer must be that you don't know.",
	}, makeAssembleHandler(cfg.Assembler))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report how many documents and chunks are stored and how many vectors are indexed.",
	}, makeStatusHandler(cfg.Store, cfg.Index))

	if cfg.Answerer != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question strictly from the selected documents.",
		}, makeAskHandler(cfg.Answerer))
	}

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
