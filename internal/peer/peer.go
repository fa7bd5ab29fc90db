// Package peer holds the data model for configured RADIUS peers: inbound
// Clients and outbound Upstreams (servers), their resolved address sets,
// and the per-upstream request table described in spec §3/§4.5. Address
// resolution happens once at startup; the resolved set is never refreshed
// (spec §4.3).
package peer

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"
)

// Kind is the transport kind a Client or Upstream uses.
type Kind int

const (
	Datagram Kind = iota
	Stream
)

func (k Kind) String() string {
	if k == Stream {
		return "tls"
	}
	return "udp"
}

// SlotCount is the fixed size of each upstream's request table, indexed by
// the RADIUS identifier byte.
const SlotCount = 256

// Slot is one request-table entry: an outstanding forwarded request or
// Status-Server probe. While Received is false neither Buffer nor the
// Orig* fields may be freed or reused (spec §3 invariants).
type Slot struct {
	Buffer       []byte
	OriginClient *Client
	OriginAddr   *net.UDPAddr
	OrigID       byte
	OrigAuth     [16]byte
	Tries        int
	Expiry       time.Time
	Received     bool
	IsStatus     bool
}

func (s *Slot) occupied() bool { return s.Buffer != nil }

// Upstream is a configured outbound RADIUS server.
type Upstream struct {
	Name     string
	Kind     Kind
	Host     string
	Port     int
	Addrs    []net.IP
	Secret   []byte
	TLSName  string
	TLS      *tls.Config
	StatusServerEnabled bool

	// Mu guards everything below: the slot table, NextID, NewRequest,
	// LastConnectAttempt and ConnectionOK, per spec §5 ("one mutex per
	// upstream covers its request table, new_request, and
	// last_connect_attempt").
	Mu                 sync.Mutex
	Cond               *sync.Cond
	Slots              [SlotCount]*Slot
	NextID             byte
	NewRequest         bool
	LastConnectAttempt time.Time
	ConnectionOK       bool
	LastSend           time.Time

	// Conn is the live transport handle (UDP socket or TLS session) used
	// by the writer/reader tasks. It is set by the transport layer under
	// Mu.
	Conn io.ReadWriteCloser
}

// NewUpstream allocates an Upstream with its condition variable wired to
// its own mutex.
func NewUpstream(name string, kind Kind) *Upstream {
	u := &Upstream{Name: name, Kind: kind}
	u.Cond = sync.NewCond(&u.Mu)
	return u
}

// RetryLimit returns the number of send attempts allowed for a slot before
// it is recycled: 1 for stream transports and Status-Server probes, else
// the datagram request retry budget.
func (u *Upstream) RetryLimit(isStatus bool, requestRetries int) int {
	if u.Kind == Stream || isStatus {
		return 1
	}
	return requestRetries
}

// Client is a configured inbound RADIUS peer.
type Client struct {
	Name    string
	Kind    Kind
	Host    string
	Addrs   []net.IP
	Secret  string
	TLSName string
	TLS     *tls.Config

	ReplyQueue ReplyQueueHandle

	// mu guards Session: at most one live stream session per client
	// (spec §3 invariant). Session is held only for identity (pointer
	// equality in ClearSession) and a nil check, never read or written
	// through, so io.Closer is all the contract it needs.
	mu      sync.Mutex
	Session io.Closer
}

// TryBindSession attempts to register sess as this client's live stream
// session, installing queue as its reply queue in the same critical
// section. It fails if a session is already bound, enforcing the "at most
// one live stream session per client" invariant. queue replaces whatever
// ReplyQueue previously held (a prior session's queue, closed on teardown)
// so that a reconnecting client is never left pointing at a dead queue.
func (c *Client) TryBindSession(sess io.Closer, queue ReplyQueueHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Session != nil {
		return false
	}
	c.Session = sess
	c.ReplyQueue = queue
	return true
}

// ClearSession releases the client's bound session, if it is sess.
func (c *Client) ClearSession(sess io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Session == sess {
		c.Session = nil
	}
}

// ReplyQueueHandle is the minimal interface reqtable/proxycore need to hand
// a reply to a client's outbound queue, satisfied by *replyqueue.Queue.
// Declared here (rather than imported) to keep peer dependency-free of the
// replyqueue package.
type ReplyQueueHandle interface {
	Enqueue(buf []byte, addr *net.UDPAddr) bool
}
