package mcpcontext

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// ServerToolListing is the tool inventory of one configured server, or the
// error that prevented listing it.
type ServerToolListing struct {
	Server string
	Tools  []mcp.Tool
	Err    error
}

// ListServerTools enumerates every configured server's tools. Best-effort:
// unreachable servers are reported with their error rather than aborting the
// listing.
func (c *Collector) ListServerTools(ctx context.Context) []ServerToolListing {
	listings := make([]ServerToolListing, 0, len(c.cfg.Servers))
	for _, server := range c.cfg.Servers {
		listing := ServerToolListing{Server: server.Label()}

		dialCtx, cancel := c.withTimeout(ctx, time.Duration(c.cfg.ToolTimeoutSeconds)*time.Second)
		session, err := c.factory.Dial(dialCtx, server)
		cancel()
		if err != nil {
			c.logger.Warn("tool discovery failed to reach server",
				zap.String("server", server.Label()), zap.Error(err))
			listing.Err = err
			listings = append(listings, listing)
			continue
		}

		tools, err := session.ListTools(ctx)
		_ = session.Close()
		if err != nil {
			listing.Err = err
		} else {
			listing.Tools = tools
		}
		listings = append(listings, listing)
	}
	return listings
}
