package proxycore

import (
	"net"

	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/reqtable"
	"github.com/epiphyte/radiucal/internal/replyqueue"
	"github.com/epiphyte/radiucal/internal/transport"
)

// StreamReplySink writes every reply to a single bound TLS session,
// ignoring the entry's address (stream clients have exactly one peer).
type StreamReplySink struct {
	Stream *transport.Stream
}

func (s StreamReplySink) Send(entry replyqueue.Entry) error {
	return s.Stream.Send(entry.Buffer)
}

// RunStreamListener is the single stream-listener task of spec §5: accept,
// identify the configured client by source address, enforce "at most one
// live session per client", handshake, verify peer CN, then spawn a writer
// task and run the reader loop inline (spec §4.6 "Inbound stream
// acceptance"). It returns when ln.Accept starts failing (the caller
// closes the listener to stop it).
func RunStreamListener(ln *transport.StreamListener, registry *peer.Registry, pipeline *Pipeline) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			pipeline.Log.Debug("stream listener: accept failed, stopping", "error", err)
			return
		}
		go acceptOne(raw, registry, pipeline)
	}
}

func acceptOne(raw net.Conn, registry *peer.Registry, pipeline *Pipeline) {
	host, _, _ := net.SplitHostPort(raw.RemoteAddr().String())
	ip := net.ParseIP(host)

	client, ok := registry.ClientByAddr(ip)
	if !ok || client.Kind != peer.Stream {
		pipeline.Log.Warn("stream listener: unknown source, rejecting", "addr", raw.RemoteAddr().String())
		raw.Close()
		return
	}

	stream, err := transport.HandshakeServer(raw, client.TLS, client.Host)
	if err != nil {
		pipeline.Log.Warn("stream listener: handshake/verification failed, rejecting", "client", client.Name, "error", err)
		raw.Close()
		return
	}

	queue := replyqueue.New(replyqueue.Capacity)
	if !client.TryBindSession(stream, queue) {
		pipeline.Log.Warn("stream listener: client already has a live session, rejecting", "client", client.Name)
		stream.Close()
		return
	}
	defer client.ClearSession(stream)

	done := make(chan struct{})
	go func() {
		RunReplyWriter(queue, StreamReplySink{Stream: stream}, client.Name, pipeline.Hooks, pipeline.Log)
		close(done)
	}()

	runClientReaderLoop(stream, client, pipeline)

	queue.Close()
	<-done
	stream.Close()
}

// runClientReaderLoop reads framed RADIUS messages from an accepted
// client's session and runs each through the pipeline, until the session
// ends (peer close or a transport error).
func runClientReaderLoop(stream *transport.Stream, client *peer.Client, pipeline *Pipeline) {
	for {
		buf, err := stream.Receive()
		if err != nil {
			if err == reqtable.ErrStreamClosed {
				pipeline.Log.Info("stream listener: client closed session", "client", client.Name)
			} else {
				pipeline.Log.Debug("stream listener: receive failed", "client", client.Name, "error", err)
			}
			return
		}
		pipeline.Ingest(buf, client, nil)
	}
}
