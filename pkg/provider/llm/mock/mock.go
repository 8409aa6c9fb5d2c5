// Package mock provides a test double for the llm.Provider interface.
//
// Configure the chunks to emit and the probe outcomes, then inspect the
// recorded calls:
//
//	p := &mock.Provider{
//	    StreamChunks: []llm.Chunk{{Text: "Hello. "}, {FinishReason: "stop"}},
//	}
//	ch, _ := p.StreamChat(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// StreamChunks is the sequence of chunks emitted on the channel returned
	// by StreamChat.
	StreamChunks []llm.Chunk

	// StreamErr, if non-nil, is returned from StreamChat instead of a channel.
	StreamErr error

	// StreamDelay, if set, is slept before each emitted chunk. Used by pacing
	// and cancellation tests.
	StreamDelay func()

	// ForwardResult and ForwardErr are returned by Forward.
	ForwardResult *llm.ForwardResult
	ForwardErr    error

	// PingErr is returned by Ping; ProbeErr by ProbeChat.
	PingErr  error
	ProbeErr error

	// StreamCalls records every request passed to StreamChat.
	StreamCalls []*oai.ChatRequest

	// ForwardCalls records every body passed to Forward.
	ForwardCalls [][]byte
}

// StreamChat records the call and returns a channel emitting StreamChunks.
func (p *Provider) StreamChat(ctx context.Context, req *oai.ChatRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, req)
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([]llm.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	delay := p.StreamDelay
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if delay != nil {
				delay()
			}
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// Forward records the call and returns ForwardResult, ForwardErr.
func (p *Provider) Forward(ctx context.Context, body []byte) (*llm.ForwardResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	p.ForwardCalls = append(p.ForwardCalls, bodyCopy)
	return p.ForwardResult, p.ForwardErr
}

// Ping returns PingErr.
func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PingErr
}

// ProbeChat returns ProbeErr.
func (p *Provider) ProbeChat(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProbeErr
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
