// Package tts defines the Provider interface for upstream speech-synthesis
// servers.
//
// A provider wraps one deployed TTS server and streams raw PCM audio for a
// text batch. PCM is 32-bit float little-endian; sample rate and channel
// count are fixed properties of the model.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request is one synthesis call: a text batch plus voice parameters.
type Request struct {
	// Model is the upstream model identifier.
	Model string

	// Text is the batch to synthesise. Its length must not exceed the
	// model's context size; the server rejects oversize batches.
	Text string

	// Voice selects the voice profile.
	Voice string

	// Speed is the playback-speed factor, 1.0 for normal.
	Speed float64
}

// Chunk is one unit of the synthesis stream: a PCM payload, or a terminal
// error when the stream failed mid-flight.
type Chunk struct {
	Data []byte
	Err  error
}

// Provider is the abstraction over one upstream TTS server.
type Provider interface {
	// StreamSpeech synthesises req.Text and returns a read-only channel of
	// PCM chunks. The channel is closed by the implementation when synthesis
	// finishes or ctx is cancelled; a mid-stream failure is delivered as a
	// final Chunk with Err set. Callers must drain the channel.
	StreamSpeech(ctx context.Context, req Request) (<-chan Chunk, error)

	// Ping checks upstream liveness via the service's Ping RPC.
	Ping(ctx context.Context) error
}
