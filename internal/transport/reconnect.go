package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/reqtable"
	"github.com/epiphyte/radiucal/internal/tlsctx"
)

// reconnect backoff constants from spec §4.6.
const (
	shortRetry   = 10 * time.Second
	midCeiling   = 300 * time.Second
	midRetry     = 600 * time.Second
	coldCeiling  = 100000 * time.Second
	recentWindow = 5 * time.Second
)

// OutboundStream is the outbound TLS stream adapter for one upstream: it
// owns the live *tls.Conn (if any) and implements the blocking
// connect-retry-with-backoff loop of spec §4.6, satisfying both
// reqtable.Transport and reqtable.Reconnector.
type OutboundStream struct {
	Upstream *peer.Upstream
	TLS      *tls.Config
	Host     string
	Port     int
	Addrs    []net.IP
	DialTO   time.Duration

	mu   sync.Mutex
	conn *Stream
}

// NewOutboundStream builds an adapter for an upstream; it starts
// disconnected — the first Send/Receive triggers Reconnect.
func NewOutboundStream(u *peer.Upstream, tlsConfig *tls.Config, host string, port int, addrs []net.IP) *OutboundStream {
	return &OutboundStream{Upstream: u, TLS: tlsConfig, Host: host, Port: port, Addrs: addrs, DialTO: 10 * time.Second}
}

func (o *OutboundStream) getConn() *Stream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn
}

func (o *OutboundStream) setConn(s *Stream) {
	o.mu.Lock()
	o.conn = s
	o.mu.Unlock()
}

func (o *OutboundStream) invalidate(stale *Stream) {
	o.mu.Lock()
	if o.conn == stale {
		o.conn = nil
	}
	o.mu.Unlock()
	stale.Close()
}

// Send implements reqtable.Transport. If no session is live it reconnects
// first; if the write fails it invalidates the session, reconnects once,
// and retries the write — matching spec §6 scenario S6 ("writer invokes
// reconnect ... on success resumes sending the queued request with the
// same id byte and authenticator").
func (o *OutboundStream) Send(buf []byte) error {
	conn := o.getConn()
	if conn == nil {
		if err := o.Reconnect(); err != nil {
			return err
		}
		conn = o.getConn()
	}
	if conn == nil {
		return errors.New("transport: upstream not connected")
	}
	if err := conn.Send(buf); err != nil {
		o.invalidate(conn)
		if rerr := o.Reconnect(); rerr != nil {
			return err
		}
		if conn = o.getConn(); conn == nil {
			return err
		}
		return conn.Send(buf)
	}
	return nil
}

// Receive implements reqtable.Transport. Any receive error invalidates the
// session and is reported as reqtable.ErrStreamClosed (wrapping the
// underlying error unless it was a peer close); the caller
// (reqtable.RunReader) observes it and drives Reconnect via the
// Reconnector interface.
func (o *OutboundStream) Receive() ([]byte, error) {
	conn := o.getConn()
	if conn == nil {
		if err := o.Reconnect(); err != nil {
			return nil, err
		}
		conn = o.getConn()
		if conn == nil {
			return nil, errors.New("transport: upstream not connected")
		}
	}
	buf, err := conn.Receive()
	if err != nil {
		// After a failed read the frame boundary is lost, so every error
		// ends the session.
		o.invalidate(conn)
		if errors.Is(err, ErrCleanShutdown) || errors.Is(err, reqtable.ErrStreamClosed) {
			return nil, reqtable.ErrStreamClosed
		}
		return nil, fmt.Errorf("%w: %v", reqtable.ErrStreamClosed, err)
	}
	return buf, nil
}

// Reconnect implements reqtable.Reconnector: it blocks, honoring the sleep
// schedule of spec §4.6, until a new session is established. It loops
// internally on connect/handshake/verification failure rather than
// returning an error for a transient one, since there is no caller that
// can usefully react to "still not connected" other than waiting longer.
func (o *OutboundStream) Reconnect() error {
	for {
		sleep := reconnectSleep(o.Upstream, time.Now())
		if sleep > 0 {
			time.Sleep(sleep)
		}

		o.Upstream.Mu.Lock()
		before := o.Upstream.LastConnectAttempt
		o.Upstream.Mu.Unlock()

		conn, err := o.dialAndHandshake()
		if err != nil {
			continue
		}

		o.Upstream.Mu.Lock()
		if !o.Upstream.LastConnectAttempt.Equal(before) {
			// Another task already reconnected while we were dialing; spec
			// §4.6: "A caller that observes last_connect_attempt changed
			// between its read and its attempt yields."
			o.Upstream.Mu.Unlock()
			conn.Close()
			return nil
		}
		o.Upstream.LastConnectAttempt = time.Now()
		o.Upstream.ConnectionOK = true
		o.Upstream.Mu.Unlock()

		o.setConn(conn)
		return nil
	}
}

// reconnectSleep computes and, where the schedule calls for it, updates
// LastConnectAttempt/ConnectionOK under the upstream's mutex, per spec
// §4.6's normative schedule:
//   - connection_ok was true: clear it, sleep 10s
//   - elapsed < 5s: sleep 10s
//   - elapsed < 300s: sleep elapsed seconds
//   - elapsed < 100000s: sleep 600s
//   - otherwise: cold start, no sleep
func reconnectSleep(u *peer.Upstream, now time.Time) time.Duration {
	u.Mu.Lock()
	defer u.Mu.Unlock()

	if u.ConnectionOK {
		u.ConnectionOK = false
		return shortRetry
	}

	elapsed := now.Sub(u.LastConnectAttempt)
	switch {
	case elapsed < recentWindow:
		return shortRetry
	case elapsed < midCeiling:
		return elapsed
	case elapsed < coldCeiling:
		return midRetry
	default:
		u.LastConnectAttempt = now
		return 0
	}
}

// dialAndHandshake attempts each resolved address in order, performing the
// TLS handshake and peer-CN verification on the first successful connect.
func (o *OutboundStream) dialAndHandshake() (*Stream, error) {
	var lastErr error
	for _, ip := range o.Addrs {
		raddr := &net.TCPAddr{IP: ip, Port: o.Port}
		raw, err := net.DialTimeout("tcp", raddr.String(), o.DialTO)
		if err != nil {
			lastErr = err
			continue
		}
		tconn := tls.Client(raw, o.TLS)
		if err := tconn.Handshake(); err != nil {
			tconn.Close()
			lastErr = err
			continue
		}
		if err := tlsctx.VerifyPeerCN(tconn, o.Host); err != nil {
			tconn.Close()
			lastErr = err
			continue
		}
		return NewStream(tconn), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("transport: %s has no resolved addresses", o.Host)
	}
	return nil, lastErr
}
