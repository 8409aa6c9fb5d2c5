// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled PCM chunks to consumers and to verify the
// requests passed to synthesis:
//
//	p := &mock.Provider{
//	    Chunks: [][]byte{pcm1, pcm2},
//	}
//	ch, _ := p.StreamSpeech(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Chunks is the sequence of PCM payloads emitted per StreamSpeech call.
	Chunks [][]byte

	// ChunksFor, if non-nil, overrides Chunks per batch text. Missing keys
	// fall back to Chunks.
	ChunksFor map[string][][]byte

	// StreamErr, if non-nil, is returned from StreamSpeech instead of a
	// channel.
	StreamErr error

	// MidStreamErr, if non-nil, is delivered as a final error chunk after
	// the configured payloads.
	MidStreamErr error

	// ChunkDelay, if set, is slept before each emitted chunk. Used by
	// timeout tests.
	ChunkDelay func()

	// PingErr is returned by Ping.
	PingErr error

	// Calls records every request passed to StreamSpeech in order.
	Calls []tts.Request
}

// StreamSpeech records the call and returns a channel emitting the
// configured chunks.
func (p *Provider) StreamSpeech(ctx context.Context, req tts.Request) (<-chan tts.Chunk, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	src := p.Chunks
	if alt, ok := p.ChunksFor[req.Text]; ok {
		src = alt
	}
	chunks := make([][]byte, len(src))
	copy(chunks, src)
	delay := p.ChunkDelay
	midErr := p.MidStreamErr
	p.mu.Unlock()

	ch := make(chan tts.Chunk, len(chunks)+1)
	go func() {
		defer close(ch)
		for _, data := range chunks {
			if delay != nil {
				delay()
			}
			select {
			case <-ctx.Done():
				return
			case ch <- tts.Chunk{Data: data}:
			}
		}
		if midErr != nil {
			select {
			case <-ctx.Done():
			case ch <- tts.Chunk{Err: midErr}:
			}
		}
	}()
	return ch, nil
}

// Ping returns PingErr.
func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PingErr
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
