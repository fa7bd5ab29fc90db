package proxycore

import (
	"net"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/reqtable"
	"github.com/epiphyte/radiucal/internal/transport"
)

// StartUpstream builds the transport for one configured upstream and
// spawns its writer task (spec §4.5). For stream upstreams a separate
// goroutine makes the first connection and then runs the reader task, so
// the reader starts only after the first successful connect. For datagram
// upstreams both tasks start immediately since there's no handshake to
// wait on.
func StartUpstream(u *peer.Upstream, log reqtable.Logger, stop <-chan struct{}) error {
	switch u.Kind {
	case peer.Datagram:
		return startDatagramUpstream(u, log, stop)
	default:
		return startStreamUpstream(u, log, stop)
	}
}

func startDatagramUpstream(u *peer.Upstream, log reqtable.Logger, stop <-chan struct{}) error {
	raddr := &net.UDPAddr{IP: u.Addrs[0], Port: u.Port}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	tr := transport.NewDatagram(conn)
	go reqtable.RunWriter(u, tr, log, stop)
	go reqtable.RunReader(u, tr, log, stop)
	return nil
}

// startStreamUpstream spawns the writer immediately, plus a goroutine that
// calls OutboundStream.Reconnect right away and runs the reader once it
// returns, since there is nothing to read from before the first
// connection. Reconnect blocks until a session is up; a writer Send that
// finds no session reconnects on its own.
func startStreamUpstream(u *peer.Upstream, log reqtable.Logger, stop <-chan struct{}) error {
	ostream := transport.NewOutboundStream(u, u.TLS, u.Host, u.Port, u.Addrs)
	go reqtable.RunWriter(u, ostream, log, stop)
	go func() {
		if err := ostream.Reconnect(); err != nil {
			log.Warn("upstream: initial connect failed", "upstream", u.Name, "error", err)
		}
		reqtable.RunReader(u, ostream, log, stop)
	}()
	return nil
}
