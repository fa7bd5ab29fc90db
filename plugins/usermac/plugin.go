// Package usermac adapts the teacher's plugins/usermac module: a
// username+calling-station-id allowlist check against a flat-file
// database, with an optional in-memory cache. The teacher's Pre callback
// could block the request outright; proxycore.Hook has no return value
// (the forwarding decision already happened by the time PreForward fires,
// per spec §4.8's ingest algorithm, which defines no plugin gate), so this
// becomes an audit-only observer: it still performs the lookup and still
// writes the pass/fail audit trail, it just no longer vetoes the forward.
package usermac

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/epiphyte/goutils"
	"github.com/epiphyte/radiucal/internal/pluginutil"
	"github.com/epiphyte/radiucal/internal/proxycore"
	"layeh.com/radius"
	. "layeh.com/radius/rfc2865"
)

type Hook struct {
	db       string
	logs     string
	canCache bool

	mu       sync.Mutex
	fileLock sync.Mutex
	cache    map[string]bool
}

func NewHook(lib, logs string, cache bool) *Hook {
	return &Hook{
		db:       filepath.Join(lib, "users"),
		logs:     logs,
		canCache: cache,
		cache:    make(map[string]bool),
	}
}

func (h *Hook) PreForward(evt proxycore.Event) {
	h.checkUserMac(evt.Buffer)
}

func (h *Hook) PostReply(proxycore.Event) {}

func clean(in string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(in) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (h *Hook) checkUserMac(buf []byte) {
	p, err := radius.Parse(buf, nil)
	if err != nil {
		return
	}
	username, err := UserName_LookupString(p)
	if err != nil {
		return
	}
	calling, err := CallingStationID_LookupString(p)
	if err != nil {
		return
	}
	username = clean(username)
	calling = clean(calling)
	fqdn := fmt.Sprintf("%s.%s", username, calling)

	h.mu.Lock()
	good, ok := h.cache[fqdn]
	h.mu.Unlock()
	if h.canCache && ok {
		goutils.WriteDebug("object is preauthed", fqdn)
		result := "passed"
		if !good {
			result = "failed"
		}
		go h.mark(result, username, calling, p)
		return
	}
	goutils.WriteDebug("not preauthed", fqdn)

	path := filepath.Join(h.db, fqdn)
	res := goutils.PathExists(path)
	h.mu.Lock()
	h.cache[fqdn] = res
	h.mu.Unlock()

	result := "passed"
	if !res {
		result = "failed"
	}
	go h.mark(result, username, calling, p)
}

func (h *Hook) mark(result, user, calling string, p *radius.Packet) {
	nas := clean(NASIdentifier_GetString(p))
	if len(nas) == 0 {
		nas = "unknown"
	}
	h.fileLock.Lock()
	defer h.fileLock.Unlock()
	f, t := pluginutil.DatedFile(h.logs, "audit", "")
	if f == nil {
		return
	}
	defer f.Close()
	pluginutil.FormatLog(f, t, result, fmt.Sprintf("%s (mac:%s) (nas:%s)", user, calling, nas))
}
