package transport

import (
	"crypto/tls"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/epiphyte/radiucal/internal/radpacket"
	"github.com/epiphyte/radiucal/internal/reqtable"
)

// ErrCleanShutdown names a peer close. Stream.Receive reports a peer close
// (a zero-byte read) as reqtable.ErrStreamClosed instead;
// OutboundStream.Receive treats either error the same way.
var ErrCleanShutdown = errors.New("transport: peer closed the stream")

// Stream is a length-prefixed RADIUS-over-TLS session (spec §4.6): each
// message is exactly one framed read, with the 2-byte RADIUS length field
// at offset 2 doubling as the frame length.
type Stream struct {
	conn *tls.Conn
}

// NewStream wraps an already-handshaken *tls.Conn.
func NewStream(conn *tls.Conn) *Stream {
	return &Stream{conn: conn}
}

// Send writes buf as a single frame. RADIUS framing is implicit in the
// message's own length field, so this is just one Write.
func (s *Stream) Send(buf []byte) error {
	_, err := s.conn.Write(buf)
	return err
}

// Receive reads exactly one RADIUS message: 4 header bytes to learn the
// declared length, then the remaining length-4 bytes. Messages shorter
// than 20 bytes are rejected. A zero-byte read (peer close) closes this
// side too, which sends a TLS close_notify back, and returns
// reqtable.ErrStreamClosed, on which the reqtable reader loop invokes
// Reconnect.
func (s *Stream) Receive() ([]byte, error) {
	head := make([]byte, 4)
	n, err := io.ReadFull(s.conn, head)
	if err != nil {
		if n == 0 && (errors.Is(err, io.EOF) || isCleanClose(err)) {
			s.conn.Close()
			return nil, reqtable.ErrStreamClosed
		}
		return nil, err
	}
	length := binary.BigEndian.Uint16(head[2:4])
	if int(length) < radpacket.MinPacketLen {
		return nil, radpacket.ErrBadLength
	}
	buf := make([]byte, length)
	copy(buf, head)
	if _, err := io.ReadFull(s.conn, buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

func isCleanClose(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// Close closes the underlying TLS connection.
func (s *Stream) Close() error { return s.conn.Close() }
