package peer

import (
	"net"
	"testing"
)

func TestNewUpstreamWiresCond(t *testing.T) {
	u := NewUpstream("srv1", Stream)
	if u.Cond == nil {
		t.Fatal("expected Cond to be wired")
	}
	u.Mu.Lock()
	u.Mu.Unlock()
}

func TestRetryLimit(t *testing.T) {
	stream := NewUpstream("s", Stream)
	if got := stream.RetryLimit(false, 5); got != 1 {
		t.Errorf("stream upstream: got %d, want 1", got)
	}

	datagram := NewUpstream("d", Datagram)
	if got := datagram.RetryLimit(true, 5); got != 1 {
		t.Errorf("status-server probe on datagram upstream: got %d, want 1", got)
	}
	if got := datagram.RetryLimit(false, 5); got != 5 {
		t.Errorf("ordinary datagram request: got %d, want 5", got)
	}
}

func TestKindString(t *testing.T) {
	if Datagram.String() != "udp" {
		t.Errorf("Datagram.String() = %q", Datagram.String())
	}
	if Stream.String() != "tls" {
		t.Errorf("Stream.String() = %q", Stream.String())
	}
}

type fakeSession struct{ net.Conn }

type fakeQueue struct{ name string }

func (fakeQueue) Enqueue(buf []byte, addr *net.UDPAddr) bool { return true }

func TestClientTryBindSessionEnforcesSingleSession(t *testing.T) {
	c := &Client{Name: "cli1"}
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sess1 := fakeSession{a}
	sess2 := fakeSession{b}

	if !c.TryBindSession(sess1, fakeQueue{"q1"}) {
		t.Fatal("expected first bind to succeed")
	}
	if c.TryBindSession(sess2, fakeQueue{"q2"}) {
		t.Fatal("expected second bind to fail while a session is live")
	}

	c.ClearSession(sess2) // wrong session: must not clear
	if c.TryBindSession(sess2, fakeQueue{"q2"}) {
		t.Fatal("ClearSession(wrong session) should not have released the slot")
	}
}

func TestClientClearSessionReleasesSlot(t *testing.T) {
	c := &Client{Name: "cli1"}
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	sess := fakeSession{a}

	c.TryBindSession(sess, fakeQueue{"q1"})
	c.ClearSession(sess)
	if !c.TryBindSession(fakeSession{b}, fakeQueue{"q2"}) {
		t.Fatal("expected bind to succeed after ClearSession")
	}
}

func TestClientTryBindSessionInstallsFreshQueue(t *testing.T) {
	c := &Client{Name: "cli1"}
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	c.TryBindSession(fakeSession{a}, fakeQueue{"q1"})
	first := c.ReplyQueue
	c.ClearSession(fakeSession{a})

	c.TryBindSession(fakeSession{b}, fakeQueue{"q2"})
	second := c.ReplyQueue

	if first == second {
		t.Fatal("expected a reconnecting client's bind to replace the prior session's queue")
	}
	if second != (fakeQueue{"q2"}) {
		t.Errorf("expected ReplyQueue to be the queue passed to the second bind, got %v", second)
	}
}

func TestSlotOccupied(t *testing.T) {
	var s Slot
	if s.occupied() {
		t.Error("zero-value slot should not be occupied")
	}
	s.Buffer = []byte{1}
	if !s.occupied() {
		t.Error("slot with a buffer should be occupied")
	}
}
