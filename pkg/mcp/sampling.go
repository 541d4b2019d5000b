package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
)

// DefaultSamplingTimeout bounds a sampling round trip. Clients that never
// answer must not pin server resources.
const DefaultSamplingTimeout = 30 * time.Second

// MethodSamplingCreateMessage is the server-initiated sampling request.
const MethodSamplingCreateMessage = "sampling/createMessage"

// Sentinel errors for the two failure resolutions of a sampling call.
var (
	ErrSamplingDeadline = errors.New("sampling deadline exceeded")
	ErrTransportClosed  = errors.New("transport closed")
)

// Sink delivers server-initiated messages to the session's response
// channel.
type Sink interface {
	Send(msg *JSONRPCMessage) error
}

// samplingCall is the rendezvous between the goroutine waiting for a
// sampling answer and the request that delivers it. It resolves exactly
// once.
type samplingCall struct {
	id   string
	done chan struct{}
	once sync.Once

	result *CreateMessageResult
	err    error
}

func (c *samplingCall) resolve(result *CreateMessageResult, err error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

// SamplingBroker correlates outgoing sampling requests with the responses
// that arrive later on a different HTTP request. One broker per session.
type SamplingBroker struct {
	mu      sync.Mutex
	pending map[string]*samplingCall
	sink    Sink
	closed  bool

	timeout time.Duration
}

// NewSamplingBroker creates a broker with the default round-trip timeout.
func NewSamplingBroker() *SamplingBroker {
	return &SamplingBroker{
		pending: make(map[string]*samplingCall),
		timeout: DefaultSamplingTimeout,
	}
}

// SetTimeout overrides the round-trip timeout. Used by tests.
func (b *SamplingBroker) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = d
}

// AttachSink binds the session's response channel. A nil sink detaches it.
func (b *SamplingBroker) AttachSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = s
}

// Sample sends a sampling/createMessage request to the client and blocks
// until it answers, the timeout fires, or the broker closes. Implements
// Sampler.
func (b *SamplingBroker) Sample(ctx context.Context, req *mcpgo.CreateMessageRequest) (*CreateMessageResult, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrTransportClosed
	}
	sink := b.sink
	timeout := b.timeout
	if sink == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: no response channel open", ErrTransportClosed)
	}

	call := &samplingCall{
		id:   "sampling-" + uuid.NewString(),
		done: make(chan struct{}),
	}
	b.pending[call.id] = call
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, call.id)
		b.mu.Unlock()
	}()

	id, _ := json.Marshal(call.id)
	msg, err := NewRequestMessage(id, MethodSamplingCreateMessage, req.CreateMessageParams)
	if err != nil {
		return nil, fmt.Errorf("failed to build sampling request: %w", err)
	}
	if err := sink.Send(msg); err != nil {
		telemetry.SamplingRoundTrips.WithLabelValues("transport_closed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}

	logger.Debugw("sampling request sent", "correlation_id", call.id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-call.done:
		if call.err != nil {
			telemetry.SamplingRoundTrips.WithLabelValues("transport_closed").Inc()
			return nil, call.err
		}
		telemetry.SamplingRoundTrips.WithLabelValues("completed").Inc()
		return call.result, nil
	case <-timer.C:
		call.resolve(nil, ErrSamplingDeadline)
		telemetry.SamplingRoundTrips.WithLabelValues("deadline_exceeded").Inc()
		return nil, ErrSamplingDeadline
	case <-ctx.Done():
		call.resolve(nil, ctx.Err())
		telemetry.SamplingRoundTrips.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}
}

// HandleResponse routes an incoming response to its waiting call. It
// reports whether the id matched an outstanding sampling request.
func (b *SamplingBroker) HandleResponse(msg *JSONRPCMessage) bool {
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return false
	}

	b.mu.Lock()
	call, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return false
	}

	if msg.Error != nil {
		call.resolve(nil, fmt.Errorf("sampling rejected by client: %s", msg.Error.Message))
		return true
	}

	var result CreateMessageResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		call.resolve(nil, fmt.Errorf("malformed sampling result: %w", err))
		return true
	}
	call.resolve(&result, nil)
	return true
}

// Close resolves every outstanding call as transport_closed and rejects
// future calls.
func (b *SamplingBroker) Close() {
	b.mu.Lock()
	pending := make([]*samplingCall, 0, len(b.pending))
	for _, call := range b.pending {
		pending = append(pending, call)
	}
	b.pending = make(map[string]*samplingCall)
	b.closed = true
	b.sink = nil
	b.mu.Unlock()

	for _, call := range pending {
		call.resolve(nil, ErrTransportClosed)
	}
}

// TextFromContent extracts the text body from a sampling result's content,
// which may be a single content object or an array of them.
func TextFromContent(content json.RawMessage) (string, error) {
	var single struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &single); err == nil && single.Type == "text" {
		return single.Text, nil
	}

	var many []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &many); err == nil {
		for _, c := range many {
			if c.Type == "text" {
				return c.Text, nil
			}
		}
	}
	return "", errors.New("sampling result carries no text content")
}
