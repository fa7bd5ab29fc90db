package transport

import (
	"net"
	"testing"

	"github.com/epiphyte/radiucal/internal/radpacket"
)

func udpLoopbackPair(t *testing.T) (listener *Listener, client *net.UDPConn) {
	t.Helper()
	l, err := ListenDatagram(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c, err := net.DialUDP("udp", nil, l.conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { l.Close(); c.Close() })
	return l, c
}

func accessRequestBuf(t *testing.T, length int) []byte {
	t.Helper()
	buf := make([]byte, length)
	buf[0] = 1 // Access-Request
	buf[1] = 7
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
	return buf
}

func TestListenerReadFromRoundTrips(t *testing.T) {
	l, c := udpLoopbackPair(t)

	msg := accessRequestBuf(t, 20)
	if _, err := c.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf, src, err := l.ReadFrom()
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(buf) != 20 {
		t.Errorf("expected 20 bytes, got %d", len(buf))
	}
	if src == nil {
		t.Error("expected a source address")
	}
}

func TestListenerReadFromTruncatesTrailingGarbage(t *testing.T) {
	l, c := udpLoopbackPair(t)

	msg := accessRequestBuf(t, 20)
	msg = append(msg, 0xAA, 0xBB, 0xCC) // declared length 20, wire length 23

	if _, err := c.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf, _, err := l.ReadFrom()
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(buf) != 20 {
		t.Errorf("expected truncation to declared length 20, got %d", len(buf))
	}
}

func TestListenerReadFromRejectsShortPacket(t *testing.T) {
	l, c := udpLoopbackPair(t)

	if _, err := c.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := l.ReadFrom(); err != radpacket.ErrTooShort {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}

func TestListenerReadFromRejectsBadDeclaredLength(t *testing.T) {
	l, c := udpLoopbackPair(t)

	buf := accessRequestBuf(t, 20)
	buf[2], buf[3] = 0, 5 // declared length 5 < MinPacketLen
	if _, err := c.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := l.ReadFrom(); err != radpacket.ErrBadLength {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func TestListenerReadFromRejectsTruncatedBelowDeclaredLength(t *testing.T) {
	l, c := udpLoopbackPair(t)

	buf := accessRequestBuf(t, 40) // declares 40 bytes but the wire packet is only 40 long... make it short
	short := buf[:25]
	short[2], short[3] = 0, 40 // declared length 40 but only 25 bytes actually sent
	if _, err := c.Write(short); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := l.ReadFrom(); err != radpacket.ErrTooShort {
		t.Errorf("expected ErrTooShort for under-length packet, got %v", err)
	}
}

func TestDatagramSendAndReceive(t *testing.T) {
	l, c := udpLoopbackPair(t)
	d := NewDatagram(c)

	reply := accessRequestBuf(t, 20)
	reply[0] = 2 // Access-Accept
	if err := l.WriteTo(reply, c.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := d.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got[0] != 2 {
		t.Errorf("expected code 2, got %d", got[0])
	}
}
