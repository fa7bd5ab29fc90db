package proxycore

import (
	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/replyqueue"
	"github.com/epiphyte/radiucal/internal/transport"
)

// DatagramReplySink writes a reply queue entry to its captured destination
// address on the single shared listening socket.
type DatagramReplySink struct {
	Listener *transport.Listener
}

func (s DatagramReplySink) Send(entry replyqueue.Entry) error {
	return s.Listener.WriteTo(entry.Buffer, entry.Addr)
}

// RunDatagramIngest is the single datagram ingest task of spec §5: read a
// datagram, resolve its source to a configured client, and run it through
// the pipeline. It returns when listener.ReadFrom starts failing (the
// caller closes the listener to stop it).
func RunDatagramIngest(listener *transport.Listener, registry *peer.Registry, pipeline *Pipeline) {
	for {
		buf, src, err := listener.ReadFrom()
		if err != nil {
			pipeline.Log.Debug("datagram ingest: read failed, stopping", "error", err)
			return
		}
		client, ok := registry.ClientByAddr(src.IP)
		if !ok {
			pipeline.Log.Warn("datagram ingest: unknown source, dropping", "addr", src.String())
			continue
		}
		if client.Kind != peer.Datagram {
			pipeline.Log.Warn("datagram ingest: source matches a non-udp client, dropping", "client", client.Name)
			continue
		}
		pipeline.Ingest(buf, client, src)
	}
}
