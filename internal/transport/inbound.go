package transport

import (
	"crypto/tls"
	"net"

	"github.com/epiphyte/radiucal/internal/tlsctx"
)

// StreamListener is the single process-wide TCP listener inbound TLS
// clients connect to (spec §5: "1 stream-listener task ... if any stream
// clients"). The TLS handshake itself happens per-accepted-connection in
// HandshakeServer, once the caller has identified which configured client
// is connecting (by source address) and can supply that client's TLS
// config.
type StreamListener struct {
	ln net.Listener
}

// ListenStream binds a plain TCP listener at addr; TLS is layered on per
// connection once the peer's configured client record (and therefore its
// TLS config) is known.
func ListenStream(addr *net.TCPAddr) (*StreamListener, error) {
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &StreamListener{ln: ln}, nil
}

// Accept returns the next raw TCP connection; its RemoteAddr identifies
// the client.
func (l *StreamListener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

func (l *StreamListener) Close() error { return l.ln.Close() }

// HandshakeServer performs the server-side TLS handshake and peer CN
// verification for an accepted inbound connection, per spec §4.6
// ("perform the TLS handshake; verify peer CN against the client's
// configured host").
func HandshakeServer(raw net.Conn, cfg *tls.Config, host string) (*Stream, error) {
	tconn := tls.Server(raw, cfg)
	if err := tconn.Handshake(); err != nil {
		tconn.Close()
		return nil, err
	}
	if err := tlsctx.VerifyPeerCN(tconn, host); err != nil {
		tconn.Close()
		return nil, err
	}
	return NewStream(tconn), nil
}
