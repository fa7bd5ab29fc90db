// Package transport implements the two adapters named in spec §4.6: a
// single bound UDP socket for datagram clients plus one dialed UDP socket
// per datagram upstream, and a
// length-prefixed TLS stream with the outbound reconnect protocol. Both
// satisfy reqtable.Transport so the writer/reader tasks in internal/reqtable
// never need to know which one they're driving.
package transport

import (
	"net"

	"github.com/epiphyte/radiucal/internal/radpacket"
)

// maxDatagramRead is the receive buffer size: large enough for the
// MaxPacketLen RADIUS ceiling plus headroom, matching the teacher's
// radius.MaxPacketLength-sized read buffer.
const maxDatagramRead = 65536

// Datagram wraps a UDP socket already dialed to a single upstream address,
// for that upstream's outbound send/receive path. The shared inbound
// socket is a Listener, not a Datagram.
type Datagram struct {
	conn *net.UDPConn
	// peer is not set by NewDatagram: the socket is already connected, so
	// Send and Receive use Write and Read without an address.
	peer *net.UDPAddr
}

// NewDatagram wraps an already-connected *net.UDPConn (net.DialUDP'd to a
// single upstream address).
func NewDatagram(conn *net.UDPConn) *Datagram {
	return &Datagram{conn: conn}
}

// Send writes buf to the peer this socket is dialed to. Per spec §4.6,
// datagram send is best-effort: a failure is reported to the caller to log
// but is never retried here — the request-table writer's own retry loop
// is the only retry mechanism.
func (d *Datagram) Send(buf []byte) error {
	_, err := d.conn.Write(buf)
	return err
}

// Receive reads one datagram and validates/truncates it to the declared
// RADIUS length, per spec §4.6: drop if cnt < 20, if RADIUS length < 20, or
// if cnt < RADIUS length; silently truncate if cnt > length.
func (d *Datagram) Receive() ([]byte, error) {
	buf := make([]byte, maxDatagramRead)
	n, err := d.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return validateAndTruncate(buf[:n])
}

// Listener is the single process-wide bound UDP socket inbound clients send
// to, per spec §5 ("1 datagram ingest task ... if any datagram clients").
type Listener struct {
	conn *net.UDPConn
}

// ListenDatagram binds a UDP socket at addr (an unspecified IP binds all
// interfaces), as parsed from the listener address syntax in spec §6.
func ListenDatagram(addr *net.UDPAddr) (*Listener, error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn}, nil
}

// ReadFrom reads one datagram, returning the validated/truncated buffer and
// its source address.
func (l *Listener) ReadFrom() (buf []byte, src *net.UDPAddr, err error) {
	raw := make([]byte, maxDatagramRead)
	n, src, err := l.conn.ReadFromUDP(raw)
	if err != nil {
		return nil, nil, err
	}
	out, verr := validateAndTruncate(raw[:n])
	if verr != nil {
		return nil, src, verr
	}
	return out, src, nil
}

// WriteTo sends buf to dst. Best-effort per spec §4.6; failures are the
// caller's responsibility to log.
func (l *Listener) WriteTo(buf []byte, dst *net.UDPAddr) error {
	_, err := l.conn.WriteToUDP(buf, dst)
	return err
}

func (l *Listener) Close() error { return l.conn.Close() }

// LocalAddr returns the listener's bound address, e.g. for startup logging.
func (l *Listener) LocalAddr() *net.UDPAddr { return l.conn.LocalAddr().(*net.UDPAddr) }

func validateAndTruncate(buf []byte) ([]byte, error) {
	if len(buf) < radpacket.MinPacketLen {
		return nil, radpacket.ErrTooShort
	}
	declared := int(radpacket.Length(buf))
	if declared < radpacket.MinPacketLen {
		return nil, radpacket.ErrBadLength
	}
	if len(buf) < declared {
		return nil, radpacket.ErrTooShort
	}
	return buf[:declared], nil
}
