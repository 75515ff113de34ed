package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/dupefinder/internal/finder"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	Finder  *finder.Service
}

// CreateServer creates and configures the MCP server. The duplicate finder
// tools are registered only when a finder service is provided.
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Finder != nil {
		finder.RegisterFindDuplicatesTool(s, cfg.Finder)
		finder.RegisterSearchRecordsTool(s, cfg.Finder)
	}

	return s
}
