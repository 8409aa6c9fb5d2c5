// Package stt defines the Provider interface for upstream transcription
// servers.
//
// A provider wraps one deployed STT server and converts a raw PCM audio
// stream (32-bit float little-endian, 16 kHz mono) into a stream of speech
// events: voice-activity boundaries and finalized utterances.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Event is the closed set of transcription stream events.
type Event interface {
	isEvent()
}

// SpeechStart reports that voice activity began.
type SpeechStart struct {
	Timestamp float64
}

func (SpeechStart) isEvent() {}

// SpeechStop reports that voice activity ended.
type SpeechStop struct {
	Timestamp float64
}

func (SpeechStop) isEvent() {}

// Transcription carries one finalized user utterance.
type Transcription struct {
	Text      string
	Timestamp float64
}

func (Transcription) isEvent() {}

// StreamError is the terminal event of a failed stream; the channel closes
// right after it.
type StreamError struct {
	Err error
}

func (StreamError) isEvent() {}

// Provider is the abstraction over one upstream STT server.
type Provider interface {
	// StreamTranscribe consumes PCM frames from audio and returns a
	// read-only channel of speech events. The implementation closes the
	// event channel when the audio channel is closed and the server has
	// flushed its final events, or when ctx is cancelled. A mid-stream
	// failure is delivered as a final StreamError event.
	//
	// Callers must close the audio channel to end the session and must
	// drain the event channel.
	StreamTranscribe(ctx context.Context, audio <-chan []byte) (<-chan Event, error)

	// Ping checks upstream liveness via the service's Ping RPC.
	Ping(ctx context.Context) error
}
