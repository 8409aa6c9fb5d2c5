// Package model holds the static records describing every model the gateway
// can front, the runtime registry binding records to configured upstream
// endpoints, and the per-model health status shared between the health worker
// and the API handlers.
package model

import "fmt"

// Kind classifies a model by the modality it serves.
type Kind string

const (
	KindLLM Kind = "llm"
	KindTTS Kind = "tts"
	KindSTT Kind = "stt"
)

// AudioConstants describes the PCM format a TTS model emits or an STT model
// expects: 32-bit float little-endian at the given rate and channel count.
type AudioConstants struct {
	SampleRate int
	Channels   int
}

// SamplingDefaults are the generation parameters applied to LLM requests that
// do not set them explicitly. Nil fields have no default.
type SamplingDefaults struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Record is the immutable description of one supported model. Records are
// compiled into the binary (see records.go); the config file binds a record
// to a concrete upstream endpoint.
type Record struct {
	// ResolveName is the short, stable name clients use (e.g. "kokoro").
	ResolveName string

	// Model is the upstream model identifier sent on the wire.
	Model string

	Kind        Kind
	ContextSize int

	// Sampling holds LLM generation defaults. Zero value for TTS/STT.
	Sampling SamplingDefaults

	// Audio holds the PCM constants for TTS output or STT input.
	Audio AudioConstants

	// Voice and Speed are TTS synthesis defaults.
	Voice string
	Speed float64

	// ChatPath and HealthPath are the upstream HTTP paths for LLM backends.
	ChatPath   string
	HealthPath string

	// DefaultPrompt is an optional system prompt used when a request carries
	// no system message and asks for speech output.
	DefaultPrompt string
}

// Model binds a Record to a configured upstream endpoint plus its mutable
// health status. Everything except Status is immutable after startup.
type Model struct {
	Record Record
	Host   string
	Port   int
	Status *Status
}

// BaseURL returns the upstream HTTP base URL, e.g. "http://llama:8080".
func (m *Model) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", m.Host, m.Port)
}

// ChatCompletionsURL returns the upstream chat completions endpoint.
func (m *Model) ChatCompletionsURL() string {
	return m.BaseURL() + m.Record.ChatPath
}

// HealthURL returns the upstream health endpoint.
func (m *Model) HealthURL() string {
	return m.BaseURL() + m.Record.HealthPath
}

// GRPCAddr returns the host:port target for gRPC upstreams (TTS, STT).
func (m *Model) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}
