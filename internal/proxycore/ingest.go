package proxycore

import (
	"net"
	"time"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/radcrypt"
	"github.com/epiphyte/radiucal/internal/radpacket"
	"github.com/epiphyte/radiucal/internal/realm"
	"github.com/epiphyte/radiucal/internal/reqtable"
)

// Logger is the minimal logging contract used across proxycore, matching
// reqtable.Logger so both packages can share one adapter over
// github.com/epiphyte/goutils.
type Logger = reqtable.Logger

// Pipeline ties a realm matcher and a set of hooks to the ingest algorithm
// of spec §4.8 (radsrv).
type Pipeline struct {
	Matcher *realm.Matcher
	Hooks   Hook
	Log     Logger
}

// NewPipeline returns a Pipeline with a no-op hook if hooks is nil.
func NewPipeline(matcher *realm.Matcher, hooks Hook, log Logger) *Pipeline {
	if hooks == nil {
		hooks = NopHook{}
	}
	return &Pipeline{Matcher: matcher, Hooks: hooks, Log: log}
}

// Ingest implements spec §4.8: validate, realm-match, dedup, verify, and
// either synthesize a local reply or hand the (now destination-keyed)
// buffer to the destination upstream's request table. buf is consumed:
// on the forwarding path its contents are mutated in place (password
// re-encryption, authenticator overwrite) exactly as spec §3's slot
// invariants require.
func (p *Pipeline) Ingest(buf []byte, client *peer.Client, srcAddr *net.UDPAddr) {
	code := radpacket.Code(buf)
	if code != radpacket.CodeAccessRequest && code != radpacket.CodeStatusServer {
		return
	}
	if _, err := radpacket.ValidateHeader(buf); err != nil {
		p.Log.Debug("ingest: bad header", "client", client.Name, "error", err)
		return
	}
	if err := radpacket.Validate(radpacket.Attrs(buf)); err != nil {
		p.Log.Debug("ingest: bad attributes", "client", client.Name, "error", err)
		return
	}

	var destination *peer.Upstream
	if code == radpacket.CodeAccessRequest {
		userVal, ok := radpacket.Find(radpacket.Attrs(buf), radpacket.TypeUserName)
		if !ok {
			p.Log.Debug("ingest: no User-Name", "client", client.Name)
			return
		}
		rule, matched := p.Matcher.Match(string(userVal))
		if !matched {
			p.Log.Info("ingest: no realm match, dropping", "client", client.Name, "username", string(userVal))
			return
		}
		if rule.Upstream == nil {
			p.rejectLocally(buf, client, srcAddr, rule)
			return
		}
		destination = rule.Upstream
	}

	origID := radpacket.Identifier(buf)

	if destination != nil && reqtable.FindDuplicate(destination, client, origID) {
		p.Log.Debug("ingest: duplicate retransmit, dropping", "client", client.Name, "id", origID)
		return
	}

	if _, present := radpacket.Find(radpacket.Attrs(buf), radpacket.TypeMessageAuthenticator); present {
		if !radcrypt.VerifyMessageAuthenticator(buf, []byte(client.Secret)) {
			p.Log.Info("ingest: bad Message-Authenticator, dropping", "client", client.Name)
			return
		}
	}

	if code == radpacket.CodeStatusServer {
		p.acceptStatusServerLocally(buf, client, srcAddr)
		return
	}

	p.forward(buf, client, srcAddr, origID, destination)
}

// rejectLocally synthesizes an Access-Reject for a realm rule with no
// destination upstream (spec §4.4/§4.8 step 3): copy the first 20 bytes of
// the request, set code=3, optionally append a Reply-Message attribute,
// sign under the client's secret, and enqueue.
func (p *Pipeline) rejectLocally(buf []byte, client *peer.Client, srcAddr *net.UDPAddr, rule *realm.Rule) {
	reply := make([]byte, radpacket.HeaderLen)
	copy(reply, buf[:radpacket.HeaderLen])
	reply[0] = radpacket.CodeAccessReject

	if rule.ReplyMessage != "" {
		reply = append(reply, buildAttribute(radpacket.TypeReplyMessage, []byte(rule.ReplyMessage))...)
	}
	radpacket.SetLength(reply, uint16(len(reply)))
	radcrypt.SignReplyAuthenticator(reply, []byte(client.Secret))

	if !client.ReplyQueue.Enqueue(reply, srcAddr) {
		p.Log.Warn("ingest: client reply queue full, dropping reject", "client", client.Name)
	}
}

// acceptStatusServerLocally answers a client-originated Status-Server
// liveness check with a synthesized Access-Accept, preserving the
// request's identifier and authenticator verbatim (spec §4.8 step 6). This
// is distinct from the proxy's own upstream keepalive probe in
// internal/reqtable, which is a request the proxy sends, not a reply it
// answers.
func (p *Pipeline) acceptStatusServerLocally(buf []byte, client *peer.Client, srcAddr *net.UDPAddr) {
	reply := make([]byte, radpacket.HeaderLen)
	copy(reply, buf[:radpacket.HeaderLen])
	reply[0] = radpacket.CodeAccessAccept
	radpacket.SetLength(reply, radpacket.HeaderLen)
	radcrypt.SignReplyAuthenticator(reply, []byte(client.Secret))

	if !client.ReplyQueue.Enqueue(reply, srcAddr) {
		p.Log.Warn("ingest: client reply queue full, dropping status-server accept", "client", client.Name)
	}
}

// forward implements spec §4.8 step 7: re-key password-bearing attributes
// from the client's secret to the destination's, stamp a fresh request
// authenticator, record the origin so the reply path can rewrite back, and
// hand it to the destination upstream's request table.
func (p *Pipeline) forward(buf []byte, client *peer.Client, srcAddr *net.UDPAddr, origID byte, destination *peer.Upstream) {
	var origAuth [16]byte
	copy(origAuth[:], radpacket.Authenticator(buf))

	var newAuth [16]byte
	copy(newAuth[:], radcrypt.RandBytes(16))

	if err := reencryptPasswords(buf, []byte(client.Secret), origAuth, destination.Secret, newAuth); err != nil {
		p.Log.Warn("ingest: password re-encryption failed, dropping", "client", client.Name, "error", err)
		return
	}

	radpacket.SetAuthenticator(buf, newAuth[:])

	corrID := NewCorrelationID()
	p.Hooks.PreForward(Event{CorrelationID: corrID, Client: client.Name, Upstream: destination.Name, Buffer: buf})

	slot := &peer.Slot{
		Buffer:       buf,
		OriginClient: client,
		OriginAddr:   srcAddr,
		OrigID:       origID,
		OrigAuth:     origAuth,
		Expiry:       time.Now(),
	}
	if err := reqtable.AllocateSlot(destination, slot); err != nil {
		p.Log.Warn("ingest: no free slot on destination upstream, dropping", "upstream", destination.Name, "error", err)
	}
}

// reencryptPasswords re-encrypts every User-Password and Tunnel-Password
// attribute in buf from (origSecret, origAuth) to (destSecret, destAuth),
// in place, per spec §4.2/§4.8.
func reencryptPasswords(buf []byte, origSecret []byte, origAuth [16]byte, destSecret []byte, destAuth [16]byte) error {
	var rekeyErr error
	radpacket.Walk(radpacket.Attrs(buf), func(a radpacket.Attribute) bool {
		var rekeyed []byte
		var err error
		switch a.Type {
		case radpacket.TypeUserPassword:
			rekeyed, err = radcrypt.ReencryptPassword(a.Value, origSecret, origAuth, destSecret, destAuth)
		case radpacket.TypeTunnelPassword:
			rekeyed, err = radcrypt.ReencryptPassword(a.Value, origSecret, origAuth, destSecret, destAuth)
		default:
			return true
		}
		if err != nil {
			rekeyErr = err
			return false
		}
		copy(a.Value, rekeyed)
		return true
	})
	return rekeyErr
}

func buildAttribute(typ byte, value []byte) []byte {
	out := make([]byte, 2+len(value))
	out[0] = typ
	out[1] = byte(2 + len(value))
	copy(out[2:], value)
	return out
}
