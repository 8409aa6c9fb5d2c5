// Package llm defines the Provider interface for upstream chat-completion
// servers.
//
// A provider wraps one deployed LLM server and exposes streaming chat for the
// synthesis pipelines, a verbatim forward for the non-streaming proxy path,
// and the probes the health worker runs.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamChat must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/voxgate/voxgate/pkg/oai"
)

// Chunk is a single chat.completion.chunk emitted by a streaming completion.
type Chunk struct {
	// Raw is the verbatim chunk JSON as received from the upstream, used by
	// the proxy path to re-emit chunks with minimal rewriting.
	Raw []byte

	// Text is the incremental delta content. May be empty for role-only or
	// finish-only chunks.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", or "error"
	// when the stream failed mid-flight (Text then carries the error).
	FinishReason string
}

// ForwardResult is the upstream's reply to a verbatim non-streaming forward.
type ForwardResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Provider is the abstraction over one upstream LLM server.
//
// Implementations must be safe for concurrent use and propagate context
// cancellation promptly.
type Provider interface {
	// StreamChat sends req to the model with streaming enabled and returns a
	// read-only channel of chunks. The channel is closed by the
	// implementation when generation finishes or ctx is cancelled.
	//
	// Mid-stream errors are surfaced as a Chunk with FinishReason "error";
	// the error return is non-nil only when the stream cannot be started.
	// Callers must drain the channel.
	StreamChat(ctx context.Context, req *oai.ChatRequest) (<-chan Chunk, error)

	// Forward posts body to the upstream chat-completions endpoint without
	// interpretation and returns the reply as-is. Used for non-streaming
	// requests, which the gateway proxies verbatim.
	Forward(ctx context.Context, body []byte) (*ForwardResult, error)

	// Ping checks upstream liveness, typically a GET on the health endpoint.
	Ping(ctx context.Context) error

	// ProbeChat runs a minimal one-token completion to verify the model can
	// actually serve requests, not just answer pings.
	ProbeChat(ctx context.Context) error
}
