// Package server implements the gateway's client-facing surface: the
// OpenAI-compatible HTTP endpoints, the model status listing, and the
// realtime voice WebSocket. Handlers resolve the request's model string
// against the registry, pick the matching upstream providers, and drive the
// streaming pipelines in internal/pipeline and internal/realtime.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxgate/voxgate/internal/ffmpeg"
	"github.com/voxgate/voxgate/internal/health"
	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/stt"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// batchBudgetFactor scales a TTS model's context size down to the batch
// budget used by the synthesis pipelines, leaving headroom for tokenization
// overhead on the model server.
const batchBudgetFactor = 0.9

// shutdownTimeout bounds graceful drain of in-flight requests in Run.
const shutdownTimeout = 15 * time.Second

// Transcoder is the ffmpeg surface the handlers need: encoding synthesized
// PCM for delivery and decoding uploaded or streamed client audio for the
// STT models. Satisfied by ffmpeg.Codec.
type Transcoder interface {
	Encode(ctx context.Context, in <-chan []byte, p ffmpeg.EncodeParams) (<-chan []byte, error)
	Decode(ctx context.Context, in <-chan []byte) (<-chan []byte, error)
}

// Providers maps each registered model's resolve name to the provider
// speaking its upstream protocol. Populated by main from the registry.
type Providers struct {
	LLM map[string]llm.Provider
	TTS map[string]tts.Provider
	STT map[string]stt.Provider
}

// Config wires one Server.
type Config struct {
	// Registry is the resolved model set. Required.
	Registry *model.Registry

	// Providers holds one provider per registered model.
	Providers Providers

	// Codec spawns ffmpeg processes for encode and decode paths. Nil
	// disables mp3/ogg output, transcriptions, and realtime sessions.
	Codec Transcoder

	// Health, when non-nil, has its probe endpoints registered on the mux.
	Health *health.Handler

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Server owns the route table and the per-request model resolution. Create
// with New; the zero value is not usable.
type Server struct {
	registry  *model.Registry
	providers Providers
	codec     Transcoder
	metrics   *observe.Metrics

	// created is the process start timestamp reported in model listings.
	created int64

	mux *http.ServeMux
}

// New builds a Server and its route table.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("server: registry is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		registry:  cfg.Registry,
		providers: cfg.Providers,
		codec:     cfg.Codec,
		metrics:   cfg.Metrics,
		created:   time.Now().Unix(),
		mux:       http.NewServeMux(),
	}
	s.routes(cfg.Health)
	return s, nil
}

func (s *Server) routes(h *health.Handler) {
	s.mux.HandleFunc("GET /v0/models", s.handleModels)
	s.mux.HandleFunc("GET /oai/v1/models", s.handleOAIModels)
	s.mux.HandleFunc("POST /oai/v1/chat/completions", s.handleChatCompletions)
	s.mux.HandleFunc("POST /oai/v1/audio/speech", s.handleSpeech)
	s.mux.HandleFunc("POST /oai/v1/audio/transcriptions", s.handleTranscriptions)
	s.mux.HandleFunc("GET /oai/v1/realtime", s.handleRealtime)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	if h != nil {
		h.Register(s.mux)
	}
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// llmFor returns the provider serving m. A registered model without a
// provider is a wiring bug, reported as an internal error.
func (s *Server) llmFor(m *model.Model) (llm.Provider, error) {
	p, ok := s.providers.LLM[m.Record.ResolveName]
	if !ok {
		return nil, fmt.Errorf("no llm provider wired for model %s", m.Record.ResolveName)
	}
	return p, nil
}

func (s *Server) ttsFor(m *model.Model) (tts.Provider, error) {
	p, ok := s.providers.TTS[m.Record.ResolveName]
	if !ok {
		return nil, fmt.Errorf("no tts provider wired for model %s", m.Record.ResolveName)
	}
	return p, nil
}

func (s *Server) sttFor(m *model.Model) (stt.Provider, error) {
	p, ok := s.providers.STT[m.Record.ResolveName]
	if !ok {
		return nil, fmt.Errorf("no stt provider wired for model %s", m.Record.ResolveName)
	}
	return p, nil
}

// synthBudget is the character budget for one synthesis batch against rec.
func synthBudget(rec model.Record) int {
	return int(float64(rec.ContextSize) * batchBudgetFactor)
}

// applySampling fills unset generation parameters from the record defaults.
func applySampling(req *oai.ChatRequest, rec model.Record) {
	if req.Temperature == nil {
		req.Temperature = rec.Sampling.Temperature
	}
	if req.TopP == nil {
		req.TopP = rec.Sampling.TopP
	}
	if req.MaxTokens == nil {
		req.MaxTokens = rec.Sampling.MaxTokens
	}
}

// encodeCodec binds the ffmpeg encoder to a record's PCM constants for the
// encode stage. Returns nil for formats that need no codec.
func (s *Server) encodeCodec(format string, rec model.Record) pipeline.CodecFunc {
	if s.codec == nil || (format != "mp3" && format != "ogg") {
		return nil
	}
	params := ffmpeg.EncodeParams{
		Format:     format,
		SampleRate: rec.Audio.SampleRate,
		Channels:   rec.Audio.Channels,
	}
	return func(ctx context.Context, in <-chan []byte) (<-chan []byte, error) {
		return s.codec.Encode(ctx, in, params)
	}
}
