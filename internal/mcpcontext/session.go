package mcpcontext

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/version"
)

// Session is one live connection to a tool server.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error)
	Close() error
}

// SessionFactory dials a configured server, returning an initialised session.
type SessionFactory interface {
	Dial(ctx context.Context, server config.MCPServerConfig) (Session, error)
}

// StdioSessionFactory launches each server as a subprocess speaking the MCP
// stdio transport.
type StdioSessionFactory struct{}

func (StdioSessionFactory) Dial(ctx context.Context, server config.MCPServerConfig) (Session, error) {
	env := make([]string, 0, len(server.Env))
	for key, value := range server.Env {
		env = append(env, key+"="+value)
	}

	cli, err := mcpclient.NewStdioMCPClient(server.Command, env, server.Args...)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", server.Label(), err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "chatloom",
		Version: version.Version,
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("initialize %s: %w", server.Label(), err)
	}
	return &stdioSession{client: cli}, nil
}

type stdioSession struct {
	client *mcpclient.Client
}

func (s *stdioSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *stdioSession) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments
	return s.client.CallTool(ctx, req)
}

func (s *stdioSession) Close() error {
	return s.client.Close()
}
