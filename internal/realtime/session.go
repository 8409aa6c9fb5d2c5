// Package realtime implements the full-duplex voice session behind the
// /oai/v1/realtime WebSocket: microphone audio in, paced synthesized speech
// out, with an LLM conversation in the middle and barge-in when the user
// speaks over the assistant.
package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/pkg/audio"
	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/stt"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

const (
	// AudioChunkSize is the largest audio payload sent in one WebSocket
	// frame. Larger synthesis batches are split so barge-in can cut in
	// between frames.
	AudioChunkSize = 98304

	// pacingFactor pads the nominal playback rate so delivery stays slightly
	// ahead of the client's playback position.
	pacingFactor = 1.3

	// InterruptedSuffix is appended to the assistant history entry of a turn
	// the user barged in on, so the model knows its answer was cut short.
	InterruptedSuffix = " ... [user interrupted assistant here]"

	// DefaultSystemPrompt opens the conversation history of a realtime
	// session.
	DefaultSystemPrompt = "You are a helpful voice assistant. " +
		"Your answers are spoken aloud, so keep them short and conversational: " +
		"plain spoken English, no markdown, no lists."
)

// Conn is the transport a session talks through. Satisfied by a thin wrapper
// over a coder/websocket connection; tests use an in-memory pair.
type Conn interface {
	// Read returns the next binary frame from the client.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one binary frame to the client.
	Write(ctx context.Context, data []byte) error
}

// Decoder converts client audio into 16 kHz mono float32 PCM. Satisfied by
// ffmpeg.Codec.
type Decoder interface {
	Decode(ctx context.Context, in <-chan []byte) (<-chan []byte, error)
}

// Config wires one realtime session.
type Config struct {
	LLM llm.Provider
	STT stt.Provider

	// Synth and TTSRequest drive the chat-synth stage; TTSContextSize bounds
	// batch length.
	Synth          pipeline.Synthesizer
	TTSRequest     tts.Request
	TTSContextSize int

	// LLMModel is the upstream model identifier; LLMContextSize bounds the
	// conversation history.
	LLMModel       string
	LLMContextSize int

	// SampleRate and Channels describe the synthesized PCM, used for pacing.
	SampleRate int
	Channels   int

	// Segmenter splits LLM output into sentences.
	Segmenter pipeline.Segmenter

	// Decoder converts inbound client audio for the STT model.
	Decoder Decoder

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string

	// Metrics is optional.
	Metrics *observe.Metrics
}

// outChunk is one paced audio frame tagged with the turn it belongs to.
type outChunk struct {
	data []byte
	turn int64
}

// Session is one live realtime conversation. Create with NewSession and run
// with Run; a Session is single-use.
type Session struct {
	cfg Config

	// turn counts user utterances. The STT producer increments it; the
	// responder and sender compare against it to detect barge-in.
	turn        atomic.Int64
	interrupted atomic.Bool

	userInput chan string
	audioOut  chan outChunk
}

// Turn returns the current turn id; it increments once per user utterance.
func (s *Session) Turn() int64 {
	return s.turn.Load()
}

// NewSession builds a session over the given config.
func NewSession(cfg Config) *Session {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Session{
		cfg:       cfg,
		userInput: make(chan string, 16),
		audioOut:  make(chan outChunk, 32),
	}
}

// Run drives the session until the client disconnects, an upstream fails, or
// ctx is cancelled. It blocks for the lifetime of the session; the first
// task to fail cancels the rest.
func (s *Session) Run(ctx context.Context, conn Conn) error {
	if m := s.cfg.Metrics; m != nil {
		m.ActiveSessions.Add(ctx, 1)
		defer m.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.listen(ctx, conn) })
	g.Go(func() error { return s.respond(ctx) })
	g.Go(func() error { return s.send(ctx, conn) })
	return g.Wait()
}

// listen is the STT producer: client frames go through the audio decoder into
// the STT stream, and each finalized transcription advances the turn counter
// and queues the utterance for the responder. Closing userInput is the
// end-of-conversation sentinel.
func (s *Session) listen(ctx context.Context, conn Conn) error {
	defer close(s.userInput)

	wsAudio := make(chan []byte, 16)
	decoded, err := s.cfg.Decoder.Decode(ctx, wsAudio)
	if err != nil {
		close(wsAudio)
		return err
	}
	events, err := s.cfg.STT.StreamTranscribe(ctx, decoded)
	if err != nil {
		close(wsAudio)
		return err
	}

	go func() {
		defer close(wsAudio)
		for {
			data, err := conn.Read(ctx)
			if err != nil {
				// Client hung up; the close of wsAudio flushes the decoder
				// and ends the STT stream.
				slog.Debug("realtime socket read ended", "err", err)
				return
			}
			select {
			case wsAudio <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for ev := range events {
		switch e := ev.(type) {
		case stt.Transcription:
			if strings.TrimSpace(e.Text) == "" {
				continue
			}
			s.turn.Add(1)
			s.interrupted.Store(true)
			slog.Info("user utterance", "turn", s.turn.Load(), "text", e.Text)
			select {
			case s.userInput <- e.Text:
			case <-ctx.Done():
				return ctx.Err()
			}
		case stt.SpeechStart, stt.SpeechStop:
			// Voice-activity boundaries; nothing to do until the
			// transcription lands.
		case stt.StreamError:
			slog.Error("transcription stream failed", "err", e.Err)
			return nil
		}
	}
	return nil
}

// respond is the LLM/TTS producer: one assistant turn per user utterance,
// with the history trimmed to the LLM context budget. Closing audioOut is the
// sender's end sentinel.
func (s *Session) respond(ctx context.Context) error {
	defer close(s.audioOut)

	messages := []oai.ChatMessage{{Role: "system", Content: s.cfg.SystemPrompt}}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-s.userInput:
			if !ok {
				return nil
			}

			s.interrupted.Store(false)
			processingTurn := s.turn.Load()

			messages = append(messages, oai.ChatMessage{Role: "user", Content: text})
			messages = oai.LimitMessages(messages, s.cfg.LLMContextSize)

			reply, wasInterrupted := s.assistantTurn(ctx, messages, processingTurn)
			if wasInterrupted {
				reply += InterruptedSuffix
				if m := s.cfg.Metrics; m != nil {
					m.RecordBargeIn(ctx, s.cfg.LLMModel)
				}
			}
			messages = append(messages, oai.ChatMessage{Role: "assistant", Content: reply})
		}
	}
}

// assistantTurn runs one chat-synth pass and feeds its audio to the sender,
// bailing out as soon as the user barges in. It returns the assistant's text
// and whether the turn was interrupted.
func (s *Session) assistantTurn(ctx context.Context, messages []oai.ChatMessage, turnID int64) (string, bool) {
	tctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := &oai.ChatRequest{
		Model:    s.cfg.LLMModel,
		Messages: messages,
		Stream:   true,
	}
	llmStream, err := s.cfg.LLM.StreamChat(tctx, req)
	if err != nil {
		slog.Error("chat stream failed to start", "err", err)
		return "", false
	}

	items := pipeline.StreamChatSynth(tctx, llmStream, pipeline.ChatSynthConfig{
		Synth:       s.cfg.Synth,
		Request:     s.cfg.TTSRequest,
		ContextSize: s.cfg.TTSContextSize,
		Segmenter:   s.cfg.Segmenter,
		Metrics:     s.cfg.Metrics,
	})

	var parts []string
	interrupted := false
	for item := range items {
		if s.interrupted.Load() || s.turn.Load() != turnID {
			interrupted = true
			cancel()
			for range items {
			}
			break
		}

		switch item.Kind {
		case pipeline.TextItem:
			parts = append(parts, item.Text)
		case pipeline.AudioItem:
			for _, piece := range audio.Split(item.Audio, AudioChunkSize) {
				select {
				case s.audioOut <- outChunk{data: piece, turn: turnID}:
				case <-ctx.Done():
					return strings.Join(parts, " "), interrupted
				}
			}
		}
	}

	return strings.Join(parts, " "), interrupted
}

// send is the paced WebSocket sender: it drops frames from stale turns and
// sleeps len/bytesPerSecond after each send so the client's buffer stays
// shallow enough for barge-in to feel immediate.
func (s *Session) send(ctx context.Context, conn Conn) error {
	bps := int(float64(audio.BytesPerSecond(s.cfg.SampleRate, s.cfg.Channels)) * pacingFactor)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-s.audioOut:
			if !ok {
				return nil
			}
			if c.turn != s.turn.Load() {
				continue
			}
			if err := conn.Write(ctx, c.data); err != nil {
				return err
			}

			pause := time.Duration(float64(len(c.data)) / float64(bps) * float64(time.Second))
			timer.Reset(pause)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
