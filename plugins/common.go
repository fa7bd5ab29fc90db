// Package plugins holds the optional observability hooks that can be
// wired into internal/proxycore's pipeline (spec §9 DESIGN NOTES treats
// these as external collaborators; the wiring itself is ambient-stack
// glue, not core proxy behavior). Each hook implements
// proxycore.Hook.PreForward/PostReply; main.go instantiates the ones named
// by the config file's "plugins" option via New.
//
// The teacher loaded these dynamically with Go's plugin.Open against
// separately built .so files. That mechanism has no home in this pipeline
// (there's no equivalent of the teacher's hot-swappable accounting
// backend, no config-reload-driven re-linking, and plugin.Open doesn't
// cross-compile), so every hook here is a regular statically linked Go
// value instead; see DESIGN.md for the full reasoning. What's kept is the
// teacher's per-plugin file layout, its Setup(ctx)-style constructor
// pattern, and its dated-logfile/instance-scoped helpers below.
//
// The helpers themselves live in internal/pluginutil so that the plugin
// subpackages (logdump, trace, usermac) can use them without importing
// this package, which registers those subpackages and would otherwise
// create an import cycle. This package re-exports them unchanged.
package plugins

import (
	"os"
	"time"

	"github.com/epiphyte/radiucal/internal/pluginutil"
)

// Context is the subset of runtime/config state a hook's constructor
// needs, mirroring the teacher's PluginContext.
type Context = pluginutil.Context

// DatedFile opens (creating if needed) today's log file for the given
// mode under dir, named the way the teacher's plugins name theirs.
func DatedFile(dir, name, instance string) (*os.File, time.Time) {
	return pluginutil.DatedFile(dir, name, instance)
}

// FormatLog appends one timestamped, indicator-tagged line.
func FormatLog(f *os.File, t time.Time, indicator, message string) {
	pluginutil.FormatLog(f, t, indicator, message)
}

// KeyValueStrings decodes buf as a structured RADIUS packet (best-effort:
// only the framing is checked, so secret may be wrong or absent; a buffer
// that does not decode yields a single line giving its byte count and the
// decode error) and renders every attribute as
// "Type: ..."/"Value: ..." line pairs, for the trace/log hooks.
func KeyValueStrings(buf []byte, secret string) []string {
	return pluginutil.KeyValueStrings(buf, secret)
}
