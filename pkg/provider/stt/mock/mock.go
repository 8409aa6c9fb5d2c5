// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed scripted speech events to consumers; events can be
// released one at a time through the Step channel for barge-in tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Events is the sequence emitted on the channel returned by
	// StreamTranscribe.
	Events []stt.Event

	// StreamErr, if non-nil, is returned from StreamTranscribe instead of a
	// channel.
	StreamErr error

	// Step, if non-nil, gates event delivery: one event is emitted per
	// receive on Step.
	Step <-chan struct{}

	// KeepAudio makes the mock record every frame it drains from the audio
	// channel into Audio.
	KeepAudio bool

	// PingErr is returned by Ping.
	PingErr error

	// Audio records every frame received on the audio channel when
	// KeepAudio is set.
	Audio [][]byte

	calls int
}

// Calls reports how many times StreamTranscribe was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// AudioFrames returns a copy of the recorded audio frames.
func (p *Provider) AudioFrames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.Audio))
	copy(out, p.Audio)
	return out
}

// StreamTranscribe records the call and returns a channel emitting Events.
func (p *Provider) StreamTranscribe(ctx context.Context, audio <-chan []byte) (<-chan stt.Event, error) {
	p.mu.Lock()
	p.calls++
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	events := make([]stt.Event, len(p.Events))
	copy(events, p.Events)
	step := p.Step
	keep := p.KeepAudio
	p.mu.Unlock()

	// Consume the audio side the way a real provider would.
	go func() {
		for frame := range audio {
			if keep {
				p.mu.Lock()
				p.Audio = append(p.Audio, frame)
				p.mu.Unlock()
			}
		}
	}()

	ch := make(chan stt.Event)
	go func() {
		defer close(ch)
		for _, ev := range events {
			if step != nil {
				select {
				case <-ctx.Done():
					return
				case <-step:
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
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

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
