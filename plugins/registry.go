package plugins

import (
	"fmt"

	"github.com/epiphyte/radiucal/internal/proxycore"
	"github.com/epiphyte/radiucal/plugins/logdump"
	"github.com/epiphyte/radiucal/plugins/stats"
	"github.com/epiphyte/radiucal/plugins/trace"
	"github.com/epiphyte/radiucal/plugins/usermac"
)

// New resolves one entry of the config file's "plugins" option to a
// proxycore.Hook, the static replacement for the teacher's
// plugin.Open(name + ".rd") lookup.
func New(name string, ctx Context) (proxycore.Hook, error) {
	switch name {
	case "log":
		return logdump.NewHook(ctx.Logs, ctx.Instance), nil
	case "trace":
		return trace.NewHook(), nil
	case "stats":
		return stats.NewHook(ctx.Logs, ctx.Instance), nil
	case "usermac":
		return usermac.NewHook(ctx.Lib, ctx.Logs, ctx.Cache), nil
	default:
		return nil, fmt.Errorf("plugins: unknown plugin %q", name)
	}
}
