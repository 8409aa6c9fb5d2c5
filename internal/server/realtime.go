package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/voxgate/voxgate/internal/realtime"
	"github.com/voxgate/voxgate/internal/segment"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// handleRealtime serves WS /oai/v1/realtime?model=llm+tts+stt. Validation
// failures after the upgrade close the socket with a policy-violation status
// and the reason string; a clean session end closes normally.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("websocket accept failed", "err", err)
		return
	}

	set, err := s.registry.Resolve(r.URL.Query().Get("model"))
	if err != nil {
		closePolicy(conn, err.Error())
		return
	}
	if set.LLM == nil || set.TTS == nil || set.STT == nil {
		closePolicy(conn, `realtime requires llm, tts and stt models, e.g. "gpt-oss-20b+kokoro+parakeet"`)
		return
	}
	if s.codec == nil {
		closePolicy(conn, "audio decoder unavailable")
		return
	}

	llmProv, llmErr := s.llmFor(set.LLM)
	ttsProv, ttsErr := s.ttsFor(set.TTS)
	sttProv, sttErr := s.sttFor(set.STT)
	if err := errors.Join(llmErr, ttsErr, sttErr); err != nil {
		slog.Error("realtime session wiring failed", "err", err)
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	llmRec := set.LLM.Record
	ttsRec := set.TTS.Record

	sess := realtime.NewSession(realtime.Config{
		LLM:            llmProv,
		STT:            sttProv,
		Synth:          ttsProv,
		TTSRequest:     tts.Request{Model: ttsRec.Model, Voice: ttsRec.Voice, Speed: ttsRec.Speed},
		TTSContextSize: synthBudget(ttsRec),
		LLMModel:       llmRec.Model,
		LLMContextSize: llmRec.ContextSize,
		SampleRate:     ttsRec.Audio.SampleRate,
		Channels:       ttsRec.Audio.Channels,
		Segmenter:      segment.New(),
		Decoder:        s.codec,
		Metrics:        s.metrics,
	})

	if err := sess.Run(r.Context(), wsTransport{conn: conn}); err != nil &&
		!errors.Is(err, context.Canceled) {
		slog.Error("realtime session failed", "model", r.URL.Query().Get("model"), "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// closePolicy closes the socket with code 1008 and the reason, truncated to
// fit the close frame.
func closePolicy(conn *websocket.Conn, reason string) {
	const maxReason = 123
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	conn.Close(websocket.StatusPolicyViolation, reason)
}

// wsTransport adapts a coder/websocket connection to the session transport.
type wsTransport struct {
	conn *websocket.Conn
}

// Read returns the next binary frame, skipping text frames.
func (t wsTransport) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageBinary {
			return data, nil
		}
	}
}

func (t wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageBinary, data)
}

var _ realtime.Conn = wsTransport{}
