// Package transport implements the streamable HTTP endpoint: POST carries
// client JSON-RPC messages, GET opens the SSE response channel for
// server-initiated messages, DELETE terminates the session.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redditmcp/redditmcp/pkg/mcp"
)

// streamBufferSize bounds the per-connection outbound queue.
const streamBufferSize = 100

// SSEStream is one open response channel. It implements mcp.Sink; the
// serving goroutine drains the channel into the HTTP response.
type SSEStream struct {
	msgCh chan *mcp.JSONRPCMessage

	closeOnce sync.Once
	done      chan struct{}
}

// NewSSEStream creates a stream with a bounded queue.
func NewSSEStream() *SSEStream {
	return &SSEStream{
		msgCh: make(chan *mcp.JSONRPCMessage, streamBufferSize),
		done:  make(chan struct{}),
	}
}

// Send queues a message for the client. It fails when the stream is closed
// or the client is not draining the queue.
func (s *SSEStream) Send(msg *mcp.JSONRPCMessage) error {
	select {
	case <-s.done:
		return fmt.Errorf("stream closed")
	default:
	}

	select {
	case s.msgCh <- msg:
		return nil
	case <-s.done:
		return fmt.Errorf("stream closed")
	default:
		return fmt.Errorf("stream queue full")
	}
}

// Close terminates the stream. Safe to call more than once.
func (s *SSEStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed when the stream terminates.
func (s *SSEStream) Done() <-chan struct{} {
	return s.done
}

// Messages returns the outbound queue.
func (s *SSEStream) Messages() <-chan *mcp.JSONRPCMessage {
	return s.msgCh
}

// encodeSSEEvent renders a message as one SSE frame.
func encodeSSEEvent(msg *mcp.JSONRPCMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode SSE event: %w", err)
	}
	return fmt.Sprintf("event: message\ndata: %s\n\n", data), nil
}
