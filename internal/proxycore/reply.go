package proxycore

import (
	"github.com/epiphyte/radiucal/internal/replyqueue"
)

// ReplySink is the transmit half of a reply queue consumer: a UDP listener
// writing to the entry's captured destination address, or a single TLS
// stream that ignores it.
type ReplySink interface {
	Send(entry replyqueue.Entry) error
}

// RunReplyWriter is the single-consumer task of spec §4.7: dequeue, fire
// the PostReply hook, transmit, repeat, until the queue is closed. One of
// these runs per stream client and exactly one runs for the shared
// datagram reply queue (spec §5).
func RunReplyWriter(queue *replyqueue.Queue, sink ReplySink, clientName string, hooks Hook, log Logger) {
	if hooks == nil {
		hooks = NopHook{}
	}
	for {
		entry, ok := queue.Dequeue()
		if !ok {
			return
		}
		hooks.PostReply(Event{Client: clientName, Buffer: entry.Buffer})
		if err := sink.Send(entry); err != nil {
			log.Warn("reply send failed", "client", clientName, "error", err)
		}
	}
}
