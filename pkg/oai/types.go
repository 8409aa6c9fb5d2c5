// Package oai defines the OpenAI-compatible wire schemas spoken on both sides
// of the gateway: requests accepted from clients and chat.completion.chunk
// objects exchanged with upstream model servers. It also carries the message
// utilities shared by the chat and realtime paths (history limiting, speech
// prompt injection, response id generation).
package oai

import "encoding/json"

// ChatMessage is a single entry in a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatAudioParams selects the audio output behaviour of a chat completion
// request whose modalities include "audio".
type ChatAudioParams struct {
	// Voice overrides the model's default voice. Optional.
	Voice string `json:"voice,omitempty"`

	// Format is the encoded output format: pcm, wav, mp3 or ogg.
	Format string `json:"format,omitempty"`
}

// ChatRequest is the body of POST /oai/v1/chat/completions. The same struct is
// forwarded to the upstream LLM after the gateway rewrites Model to the
// upstream model identifier and strips the gateway-only fields.
type ChatRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	Stream      bool             `json:"stream,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Modalities  []string         `json:"modalities,omitempty"`
	Audio       *ChatAudioParams `json:"audio,omitempty"`
}

// WantsAudio reports whether the request asked for the audio modality.
func (r *ChatRequest) WantsAudio() bool {
	for _, m := range r.Modalities {
		if m == "audio" {
			return true
		}
	}
	return false
}

// UpstreamBody returns the JSON body to forward to the upstream LLM. The
// modalities and audio fields are gateway concerns and never reach the model
// server.
func (r *ChatRequest) UpstreamBody() ([]byte, error) {
	forward := *r
	forward.Modalities = nil
	forward.Audio = nil
	return json.Marshal(&forward)
}

// ChatDeltaAudio is the audio member of a streamed delta. ID is set only on
// the first audio chunk of a message; Data carries base64 PCM/encoded bytes;
// Transcript carries the text a synthesis batch was produced from.
type ChatDeltaAudio struct {
	ID         string `json:"id,omitempty"`
	Data       string `json:"data,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ChatDelta is the incremental payload of a streaming chat chunk.
type ChatDelta struct {
	Role             string          `json:"role,omitempty"`
	Content          string          `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Audio            *ChatDeltaAudio `json:"audio,omitempty"`
}

// ChatChunkChoice is a single choice inside a chat.completion.chunk.
type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

// ChatChunk is one chat.completion.chunk object, as decoded from the upstream
// SSE stream and as re-emitted to clients.
type ChatChunk struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Created           int64             `json:"created"`
	Model             string            `json:"model"`
	SystemFingerprint *string           `json:"system_fingerprint,omitempty"`
	Choices           []ChatChunkChoice `json:"choices"`
}

// Delta returns the first choice's delta, or nil when the chunk has no
// choices (keep-alive chunks from some servers).
func (c *ChatChunk) Delta() *ChatDelta {
	if len(c.Choices) == 0 {
		return nil
	}
	return &c.Choices[0].Delta
}

// SpeechRequest is the body of POST /oai/v1/audio/speech.
type SpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input,omitempty"`
	Text           string  `json:"text,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Stream         bool    `json:"stream,omitempty"`
}

// SpeechText returns the text to synthesise, accepting both the OpenAI
// "input" field and the legacy "text" field.
func (r *SpeechRequest) SpeechText() string {
	if r.Input != "" {
		return r.Input
	}
	return r.Text
}

// TranscriptionDelta is one JSON line of the transcriptions response stream.
type TranscriptionDelta struct {
	Delta string `json:"delta"`
}

// mediaTypes maps a response_format to its Content-Type.
var mediaTypes = map[string]string{
	"wav": "audio/wav",
	"mp3": "audio/mpeg",
	"ogg": "audio/ogg",
	"pcm": "application/octet-stream",
}

// MediaType returns the Content-Type for an audio response format, or false
// when the format is not supported.
func MediaType(format string) (string, bool) {
	mt, ok := mediaTypes[format]
	return mt, ok
}

// ErrorDetail is the inner member of an error response body.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorResponse is the JSON error body `{"error":{"message","type"}}` used by
// every non-2xx response of the gateway.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ModelInfo is one element of GET /oai/v1/models.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the body of GET /oai/v1/models.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}
