package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/permit-assistant/internal/adapters/tools"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

const ServerName = "permit-assistant"

// ToolInvoker is the part of the tool dispatcher the MCP server needs.
type ToolInvoker interface {
	Definitions() []tools.Definition
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// NewServer registers every permit tool on a new MCP server.
func NewServer(invoker ToolInvoker, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, def := range invoker.Definitions() {
		s.AddTool(toolFromDefinition(def), handler(invoker, def.Name))
	}
	return s
}

func toolFromDefinition(def tools.Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	for _, p := range def.Params {
		switch p.Type {
		case tools.TypeInteger:
			propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
			if p.Required {
				propOpts = append(propOpts, mcp.Required())
			}
			if p.Min != nil {
				propOpts = append(propOpts, mcp.Min(*p.Min))
			}
			if p.Max != nil {
				propOpts = append(propOpts, mcp.Max(*p.Max))
			}
			if n, ok := p.Default.(int); ok {
				propOpts = append(propOpts, mcp.DefaultNumber(float64(n)))
			}
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		default:
			propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
			if p.Required {
				propOpts = append(propOpts, mcp.Required())
			}
			if len(p.Enum) > 0 {
				propOpts = append(propOpts, mcp.Enum(p.Enum...))
			}
			if s, ok := p.Default.(string); ok {
				propOpts = append(propOpts, mcp.DefaultString(s))
			}
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(def.Name, opts...)
}

func handler(invoker ToolInvoker, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := invoker.Invoke(ctx, name, req.GetArguments())
		if err != nil {
			if !domain.IsKind(err, domain.ErrInvalidInput) && !domain.IsKind(err, domain.ErrToolNotFound) {
				slog.Error("mcp_tool_failed", "tool", name, "error", err)
			}
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return mcp.NewToolResultText(output), nil
	}
}
