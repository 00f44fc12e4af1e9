package apidiff

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/migverify/kit"
)

// RegisterMCP registers the apidiff tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	ep := s.endpoints()

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name: "apidiff_compare",
		Description: "Compare two stored API snapshots (legacy vs migrated) and return the classified differences. " +
			"Select snapshots by before_id/after_id or by before_label/after_label (latest of each).",
		InputSchema: inputSchema(map[string]any{
			"before_id":    map[string]any{"type": "string", "description": "Snapshot ID of the legacy capture"},
			"after_id":     map[string]any{"type": "string", "description": "Snapshot ID of the migrated capture"},
			"before_label": map[string]any{"type": "string", "description": "Use the latest snapshot with this label as before"},
			"after_label":  map[string]any{"type": "string", "description": "Use the latest snapshot with this label as after"},
		}, nil),
	}, ep.compare, kit.DecodeJSON[CompareRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "apidiff_get_run",
		Description: "Get a stored comparison run with every endpoint result and difference.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Run ID"},
		}, []string{"id"}),
	}, ep.getRun, kit.DecodeJSON[GetRunRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "apidiff_list_runs",
		Description: "List stored comparison runs, newest first, with their summaries.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum runs (default 100)"},
		}, nil),
	}, ep.listRuns, kit.DecodeJSON[ListRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "apidiff_list_snapshots",
		Description: "List stored API snapshots, newest first, optionally filtered by label.",
		InputSchema: inputSchema(map[string]any{
			"label": map[string]any{"type": "string", "description": "Only snapshots with this label"},
			"limit": map[string]any{"type": "integer", "description": "Maximum snapshots (default 100)"},
		}, nil),
	}, ep.listSnapshots, kit.DecodeJSON[ListRequest]())
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
