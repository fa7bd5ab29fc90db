package proxycore

import (
	"net"
	"testing"

	"github.com/epiphyte/radiucal/internal/replyqueue"
)

type recordingSink struct {
	sent []replyqueue.Entry
	err  error
}

func (s *recordingSink) Send(entry replyqueue.Entry) error {
	s.sent = append(s.sent, entry)
	return s.err
}

func TestRunReplyWriterDrainsQueueAndFiresPostReply(t *testing.T) {
	q := replyqueue.New(4)
	q.Enqueue([]byte{1, 2, 3}, &net.UDPAddr{Port: 1})
	q.Enqueue([]byte{4, 5, 6}, &net.UDPAddr{Port: 2})
	q.Close()

	sink := &recordingSink{}
	hook := &orderedHook{order: &[]int{}}
	RunReplyWriter(q, sink, "client1", hook, nopLogger{})

	if len(sink.sent) != 2 {
		t.Fatalf("expected 2 entries sent, got %d", len(sink.sent))
	}
	if len(*hook.order) != 2 {
		t.Errorf("expected PostReply fired twice, got %d", len(*hook.order))
	}
}

func TestRunReplyWriterToleratesNilHooks(t *testing.T) {
	q := replyqueue.New(1)
	q.Enqueue([]byte{1}, nil)
	q.Close()

	sink := &recordingSink{}
	RunReplyWriter(q, sink, "client1", nil, nopLogger{})

	if len(sink.sent) != 1 {
		t.Errorf("expected 1 entry sent, got %d", len(sink.sent))
	}
}

func TestRunReplyWriterLogsSendFailureButKeepsDraining(t *testing.T) {
	q := replyqueue.New(2)
	q.Enqueue([]byte{1}, nil)
	q.Enqueue([]byte{2}, nil)
	q.Close()

	sink := &recordingSink{err: net.ErrClosed}
	RunReplyWriter(q, sink, "client1", NopHook{}, nopLogger{})

	if len(sink.sent) != 2 {
		t.Errorf("expected draining to continue past a send error, got %d entries", len(sink.sent))
	}
}
