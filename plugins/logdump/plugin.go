// Package logdump adapts the teacher's plugins/log module (dated-file dump
// of every Auth/Accounting packet) to the static proxycore.Hook seam. There
// is no accounting phase left to dump (spec's Non-goals exclude it), so
// this dumps the two seams that remain: the forward and the reply.
package logdump

import (
	"fmt"
	"sync"

	"github.com/epiphyte/radiucal/internal/pluginutil"
	"github.com/epiphyte/radiucal/internal/proxycore"
)

type Hook struct {
	logs     string
	instance string
	mu       sync.Mutex
}

func NewHook(logs, instance string) *Hook {
	return &Hook{logs: logs, instance: instance}
}

func (h *Hook) PreForward(evt proxycore.Event) {
	h.write("forward", evt)
}

func (h *Hook) PostReply(evt proxycore.Event) {
	h.write("reply", evt)
}

func (h *Hook) write(mode string, evt proxycore.Event) {
	go func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		f, t := pluginutil.DatedFile(h.logs, mode, h.instance)
		if f == nil {
			return
		}
		defer f.Close()
		pluginutil.FormatLog(f, t, mode, fmt.Sprintf("id -> %s (client:%s upstream:%s)", evt.CorrelationID, evt.Client, evt.Upstream))
		for _, a := range pluginutil.KeyValueStrings(evt.Buffer, "") {
			pluginutil.FormatLog(f, t, mode, a)
		}
	}()
}
