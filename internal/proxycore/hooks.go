// Package proxycore wires the pieces named in the other internal packages
// into the actual proxy pipeline of spec §4.8: inbound ingest (radsrv),
// realm lookup, attribute rewrite, the per-upstream writer/reader tasks,
// and the reply-queue consumers that transmit back to clients.
package proxycore

import (
	"github.com/google/uuid"
	"layeh.com/radius"
)

// Hook is an observability callback invoked around the pipeline's two
// natural seams: right before a request is handed to its destination
// upstream, and right after a rewritten reply has been taken off the
// origin client's reply queue, just before it is sent. It plays the role the teacher's
// Auth/Accounting plugin callbacks played, moved from a dynamically loaded
// `plugin.Open` module onto these two statically wired seams, since this
// proxy has no accounting phase for a plugin to hook into (spec's
// Non-goals exclude accounting) and only ever sees one RADIUS leg per
// request.
type Hook interface {
	PreForward(evt Event)
	PostReply(evt Event)
}

// Event is what a Hook receives. Buffer is the raw wire buffer at the time
// of the call (post-rewrite for PostReply); CorrelationID is stamped once
// per forwarded request on its PreForward event so that request's
// forwarding can be grepped out of logs spanning many concurrent upstream
// writer/reader goroutine pairs. PostReply events carry only Client and
// Buffer: no CorrelationID and no Upstream.
type Event struct {
	CorrelationID string
	Client        string
	Upstream      string
	Buffer        []byte
}

// NewCorrelationID stamps a fresh correlation ID for one ingested request.
func NewCorrelationID() string {
	return uuid.NewString()
}

// DecodeForInspection best-effort decodes buf as a structured
// *radius.Packet for a Hook's own use (e.g. logging attribute names).
// Only the framing is checked: the authenticator is not validated, so a
// wrong secret does not make decoding fail (secret is kept on the packet
// for decrypting attributes). Decoding failure is not an
// error the pipeline itself cares about — it only matters to hooks that
// want human-readable output — so this returns ok=false instead of an
// error a caller must handle.
func DecodeForInspection(buf []byte, secret string) (p *radius.Packet, ok bool) {
	pkt, err := radius.Parse(buf, []byte(secret))
	if err != nil {
		return nil, false
	}
	return pkt, true
}

// Hooks runs a list of Hook implementations in order, swallowing nothing:
// every hook sees every event. It itself satisfies Hook so the pipeline
// can hold a single value whether zero, one, or many hooks are configured.
type Hooks []Hook

func (hs Hooks) PreForward(evt Event) {
	for _, h := range hs {
		h.PreForward(evt)
	}
}

func (hs Hooks) PostReply(evt Event) {
	for _, h := range hs {
		h.PostReply(evt)
	}
}

// NopHook discards every event; the default when no plugins are
// configured.
type NopHook struct{}

func (NopHook) PreForward(Event) {}
func (NopHook) PostReply(Event)  {}
