package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/sqlrag/internal/pipeline"
	"github.com/kalambet/sqlrag/internal/retrieval"
	"github.com/kalambet/sqlrag/internal/session"
)

// MCPPipeline is the subset of pipeline.Pipeline the MCP tools call.
type MCPPipeline interface {
	Run(ctx context.Context, question string) (pipeline.Turn, error)
	GenerateSQL(ctx context.Context, question string) (pipeline.Turn, error)
	RetrieveContext(ctx context.Context, question string) ([]retrieval.ScoredChunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline MCPPipeline
	// Schema is served as the schema://university resource. Empty disables it.
	Schema            string
	GenerationTimeout time.Duration
}

// NewMCPServer creates an MCP server with the text-to-SQL tools registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sqlrag",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sqlrag answers questions about the university database by generating and running SQLite queries."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_sql",
			mcp.WithDescription("Generate a single SQL statement for a natural-language question without running it."),
			mcp.WithString("question", mcp.Description("Question about the university data"), mcp.Required()),
		),
		mcpGenerateSQL(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Generate SQL for a question, run it, and return the columns and rows or the SQL error."),
			mcp.WithString("question", mcp.Description("Question about the university data"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("retrieve_context",
			mcp.WithDescription("Return the schema and documentation chunks most relevant to a question."),
			mcp.WithString("question", mcp.Description("Question to search context for"), mcp.Required()),
		),
		mcpRetrieveContext(deps),
	)

	if deps.Schema != "" {
		s.AddResource(
			mcp.NewResource(
				"schema://university",
				"University Schema",
				mcp.WithResourceDescription("CREATE TABLE statements of the university database"),
				mcp.WithMIMEType("application/sql"),
			),
			mcpResourceSchema(deps),
		)
	}

	return s
}

func mcpGenerateSQL(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		turn, err := deps.Pipeline.GenerateSQL(ctx, question)
		if err != nil {
			return mcpError(session.FailureMessage(err, deps.GenerationTimeout)), nil
		}
		return mcpText(turn.SQL), nil
	}
}

// AskResult is the JSON shape returned by the ask tool. Either Columns and
// Rows or Error is set.
type AskResult struct {
	SQL     string   `json:"sql"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		turn, err := deps.Pipeline.Run(ctx, question)
		if err != nil {
			return mcpError(session.FailureMessage(err, deps.GenerationTimeout)), nil
		}

		out := AskResult{SQL: turn.SQL}
		if turn.Result.Failed() {
			out.Error = turn.Result.Error
		} else {
			out.Columns = turn.Result.Columns
			out.Rows = turn.Result.Rows
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		res := mcpText(string(b))
		res.IsError = turn.Result.Failed()
		return res, nil
	}
}

func mcpRetrieveContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		chunks, err := deps.Pipeline.RetrieveContext(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID     string  `json:"id"`
			Text   string  `json:"text"`
			Score  float32 `json:"score"`
			Source string  `json:"source,omitempty"`
		}

		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{
				ID:     c.ID,
				Text:   c.Text,
				Score:  c.Score,
				Source: c.Metadata["source"],
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSchema(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/sql",
				Text:     deps.Schema,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
