// Package stats adapts the teacher's plugins/stats module: a dated
// per-mode counter file ("first seen", "last seen", "count"), rewritten
// against the two static seams (forward/reply) instead of the teacher's
// pre-auth/auth/accounting trio, and with its own mode bookkeeping since
// the teacher's plugins.DisabledModes/NewFilePath/mode constants have no
// equivalent left in the rewritten plugins package.
package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/epiphyte/radiucal/internal/proxycore"
)

type modedata struct {
	first time.Time
	last  time.Time
	name  string
	count int
}

func (m *modedata) String() string {
	return fmt.Sprintf("first: %s\nlast: %s\ncount: %d\nname: %s\n",
		m.first.Format("2006-01-02T15:04:05"),
		m.last.Format("2006-01-02T15:04:05"),
		m.count,
		m.name)
}

type Hook struct {
	logs     string
	instance string

	mu   sync.Mutex
	info map[string]*modedata
}

func NewHook(logs, instance string) *Hook {
	return &Hook{logs: logs, instance: instance, info: make(map[string]*modedata)}
}

func (h *Hook) PreForward(evt proxycore.Event) {
	h.record("forward")
}

func (h *Hook) PostReply(evt proxycore.Event) {
	h.record("reply")
}

func (h *Hook) record(mode string) {
	go func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		t := time.Now()
		m, ok := h.info[mode]
		if !ok {
			m = &modedata{first: t, name: mode}
			h.info[mode] = m
		}
		m.last = t
		m.count++
		name := fmt.Sprintf("radiucal.stats.%s", mode)
		if h.instance != "" {
			name = fmt.Sprintf("radiucal.%s.stats.%s", h.instance, mode)
		}
		os.WriteFile(filepath.Join(h.logs, name), []byte(m.String()), 0644)
	}()
}
