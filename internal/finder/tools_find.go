package finder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/dupefinder/internal/report"
)

// FindDuplicatesArgument defines find_duplicates parameters.
type FindDuplicatesArgument struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum number of candidate pairs to list (0 lists all)"`
}

// FindDuplicatesHandler handles the find_duplicates MCP tool.
type FindDuplicatesHandler struct {
	service *Service
}

// NewFindDuplicatesHandler creates a new find_duplicates handler.
func NewFindDuplicatesHandler(service *Service) *FindDuplicatesHandler {
	return &FindDuplicatesHandler{service: service}
}

// Handle runs detection over the cached snapshot and returns the table.
// The export file is not written.
func (h *FindDuplicatesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FindDuplicatesArgument) (*mcp.CallToolResult, any, error) {
	if args.Limit < 0 {
		return errorResult("Limit cannot be negative"), nil, nil
	}

	candidates, err := h.service.FindDuplicates(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Duplicate detection failed: %s", err)), nil, nil
	}

	total := len(candidates)
	if args.Limit > 0 && total > args.Limit {
		candidates = candidates[:args.Limit]
	}

	var buf bytes.Buffer
	if err := report.WriteTable(&buf, candidates); err != nil {
		return errorResult(fmt.Sprintf("Failed to render report: %s", err)), nil, nil
	}
	if total > len(candidates) {
		fmt.Fprintf(&buf, "... and %d more\n", total-len(candidates))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: buf.String()},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *FindDuplicatesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "find_duplicates",
		Description: "List pairs of business records that likely describe the same business, with every matching reason",
	}
}

// RegisterFindDuplicatesTool registers the find_duplicates tool with an MCP server.
func RegisterFindDuplicatesTool(server *mcp.Server, service *Service) {
	handler := NewFindDuplicatesHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}
