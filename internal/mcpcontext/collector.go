package mcpcontext

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/observability"
)

// Collector gathers tool context from the configured servers for a single
// prompt. All failures degrade: a server that cannot be reached is reported
// in an offline notice at worst, never as an error to the caller.
type Collector struct {
	cfg     config.MCPConfig
	router  *Router
	factory SessionFactory
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewCollector(cfg config.MCPConfig, factory SessionFactory, logger *zap.Logger, metrics *observability.Metrics) *Collector {
	if factory == nil {
		factory = StdioSessionFactory{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:     cfg,
		router:  NewRouter(cfg.Servers, cfg.TriggerKeywords),
		factory: factory,
		logger:  logger,
		metrics: metrics,
	}
}

// Collect blocks until every selected server has been processed, then returns
// the merged context block, an offline notice, or the empty string when there
// is nothing to add. Cancelling ctx cancels in-flight tool calls.
func (c *Collector) Collect(ctx context.Context, prompt, sessionID string) string {
	if !c.cfg.Enabled {
		return ""
	}

	selected := c.router.SelectServers(prompt)
	if len(selected) == 0 {
		c.logger.Debug("no relevant MCP servers for prompt", zap.String("session_id", sessionID))
		return ""
	}
	c.metrics.RecordMCPServersSelected(len(selected))

	sections := make([]string, len(selected))
	offline := make([]string, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for i, server := range selected {
		g.Go(func() error {
			section, ok := c.collectServer(gctx, server, prompt, sessionID)
			if !ok {
				offline[i] = server.Label()
				return nil
			}
			sections[i] = section
			return nil
		})
	}
	// Workers capture their own failures, so this never returns an error.
	_ = g.Wait()

	var merged []string
	for _, section := range sections {
		if section != "" {
			merged = append(merged, section)
		}
	}
	if len(merged) > 0 {
		block := strings.Join(merged, "\n\n")
		c.logger.Debug("aggregated MCP context",
			zap.String("session_id", sessionID),
			zap.Int("length", len(block)))
		return block
	}

	var offlineLabels []string
	for _, label := range offline {
		if label != "" {
			offlineLabels = append(offlineLabels, label)
		}
	}
	if len(offlineLabels) > 0 {
		c.logger.Warn("MCP servers unavailable",
			zap.String("session_id", sessionID),
			zap.Strings("servers", offlineLabels))
		return formatOfflineNotice(offlineLabels)
	}

	c.logger.Debug("no contextual data returned from MCP servers", zap.String("session_id", sessionID))
	return ""
}

// collectServer runs the full pipeline for one server. The second return is
// false only when the server could not even list its tools (offline).
func (c *Collector) collectServer(ctx context.Context, server config.MCPServerConfig, prompt, sessionID string) (string, bool) {
	callTimeout := time.Duration(c.cfg.ToolTimeoutSeconds) * time.Second

	dialCtx, cancel := c.withTimeout(ctx, callTimeout)
	session, err := c.factory.Dial(dialCtx, server)
	cancel()
	if err != nil {
		c.logger.Error("failed to initialise MCP server",
			zap.String("server", server.Label()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.metrics.RecordMCPServerOffline(server.Label())
		return "", false
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Debug("closing MCP session", zap.String("server", server.Label()), zap.Error(err))
		}
	}()

	listCtx, cancel := c.withTimeout(ctx, callTimeout)
	tools, err := session.ListTools(listCtx)
	cancel()
	if err != nil {
		c.logger.Error("failed to list MCP tools",
			zap.String("server", server.Label()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.metrics.RecordMCPServerOffline(server.Label())
		return "", false
	}

	eligible := c.router.SelectTools(prompt, tools, server)
	if len(eligible) == 0 {
		c.logger.Debug("no eligible tools on MCP server", zap.String("server", server.Label()))
		return "", true
	}

	var refined []*RefinedResult
	for _, tool := range eligible {
		arguments, ok := BuildArguments(tool.InputSchema, prompt)
		if !ok {
			c.logger.Info("required tool argument unsatisfiable; skipping",
				zap.String("server", server.Label()),
				zap.String("tool", tool.Name))
			continue
		}

		callCtx, cancel := c.withTimeout(ctx, callTimeout)
		result, err := session.CallTool(callCtx, tool.Name, arguments)
		cancel()
		if err != nil {
			c.logger.Error("MCP tool invocation failed",
				zap.String("server", server.Label()),
				zap.String("tool", tool.Name),
				zap.Error(err))
			c.metrics.RecordMCPToolCall(tool.Name, false)
			continue
		}
		if result.IsError {
			c.logger.Warn("MCP tool returned an error payload",
				zap.String("server", server.Label()),
				zap.String("tool", tool.Name))
			c.metrics.RecordMCPToolCall(tool.Name, false)
			continue
		}
		c.metrics.RecordMCPToolCall(tool.Name, true)

		if r := Refine(tool, result, server.Label()); r != nil {
			refined = append(refined, r)
		}
	}

	if len(refined) == 0 {
		c.logger.Debug("server returned no actionable MCP context",
			zap.String("server", server.Label()),
			zap.String("session_id", sessionID))
		return "", true
	}
	c.logger.Debug("server produced refined MCP results",
		zap.String("server", server.Label()),
		zap.Int("count", len(refined)))
	return formatSections(refined), true
}

func (c *Collector) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
