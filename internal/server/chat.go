package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/segment"
	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// handleChatCompletions serves POST /oai/v1/chat/completions. Three shapes:
// a verbatim proxy for non-streaming requests, an SSE proxy for streaming
// text, and the chat-synth pipeline when the audio modality is requested.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req oai.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, "invalid request body: "+err.Error())
		return
	}

	if err := oai.ValidateMessages(req.Messages); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, err.Error())
		return
	}

	set, err := s.registry.Resolve(req.Model)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	if set.LLM == nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"chat completions require an llm model")
		return
	}
	if set.STT != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"an stt model has no role in chat completions")
		return
	}

	wantAudio := req.WantsAudio()
	switch {
	case wantAudio && set.TTS == nil:
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			`the audio modality requires a tts model, e.g. "gpt-oss-20b+kokoro"`)
		return
	case wantAudio && !req.Stream:
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"audio responses require stream: true")
		return
	case !wantAudio && set.TTS != nil:
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			`a tts model requires modalities to include "audio"`)
		return
	}

	provider, err := s.llmFor(set.LLM)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	applySampling(&req, set.LLM.Record)

	switch {
	case !req.Stream:
		s.forwardChat(w, r.Context(), set.LLM, provider, &req)
	case wantAudio:
		s.streamChatAudio(w, r.Context(), set, provider, &req)
	default:
		s.streamChatText(w, r.Context(), set.LLM, provider, &req)
	}
}

// forwardChat proxies a non-streaming request to the upstream verbatim,
// after rewriting the model field to the upstream identifier. The upstream's
// status, content type and body pass through untouched, including errors.
func (s *Server) forwardChat(w http.ResponseWriter, ctx context.Context, m *model.Model, provider llm.Provider, req *oai.ChatRequest) {
	upstream := *req
	upstream.Model = m.Record.Model
	body, err := upstream.UpstreamBody()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	result, err := provider.Forward(ctx, body)
	if err != nil {
		s.metrics.RecordUpstreamError(ctx, m.Record.ResolveName, "llm")
		writeUpstreamError(w, err)
		return
	}
	s.metrics.RecordUpstreamRequest(ctx, m.Record.ResolveName, "llm", "forward")

	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
	}
	w.WriteHeader(result.StatusCode)
	if _, err := w.Write(result.Body); err != nil {
		slog.Debug("failed to write forwarded body", "err", err)
	}
}

// streamChatText re-emits the upstream SSE stream with the model field
// rewritten to the client-facing name.
func (s *Server) streamChatText(w http.ResponseWriter, ctx context.Context, m *model.Model, provider llm.Provider, req *oai.ChatRequest) {
	stream, err := provider.StreamChat(ctx, req)
	if err != nil {
		s.metrics.RecordUpstreamError(ctx, m.Record.ResolveName, "llm")
		writeUpstreamError(w, err)
		return
	}
	s.metrics.RecordUpstreamRequest(ctx, m.Record.ResolveName, "llm", "stream")
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

	sse := oai.NewSSEWriter(w)
	respID := oai.NewMessageID()
	created := time.Now().Unix()

	for chunk := range stream {
		if chunk.FinishReason == "error" {
			slog.Error("llm stream failed mid-flight", "model", m.Record.ResolveName, "err", chunk.Text)
			return
		}
		payload, err := rewriteChunk(chunk, req.Model, respID, created)
		if err != nil {
			slog.Warn("dropping malformed upstream chunk", "err", err)
			continue
		}
		if err := sse.WriteRaw(payload); err != nil {
			// Client hung up; context cancellation tears down the upstream.
			return
		}
	}
	if err := sse.WriteDone(); err != nil {
		slog.Debug("failed to terminate sse stream", "err", err)
	}
}

// rewriteChunk produces the client-facing JSON for one upstream chunk. Raw
// payloads keep their upstream fields with only the model name replaced;
// providers without raw payloads get a synthesized chunk.
func rewriteChunk(c llm.Chunk, modelName, id string, created int64) ([]byte, error) {
	if len(c.Raw) > 0 {
		var chunk oai.ChatChunk
		if err := json.Unmarshal(c.Raw, &chunk); err != nil {
			return nil, err
		}
		chunk.Model = modelName
		return json.Marshal(&chunk)
	}

	var finish *string
	if c.FinishReason != "" {
		finish = &c.FinishReason
	}
	chunk := oai.ChatChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   modelName,
		Choices: []oai.ChatChunkChoice{{
			Delta:        oai.ChatDelta{Content: c.Text},
			FinishReason: finish,
		}},
	}
	return json.Marshal(&chunk)
}

// streamChatAudio runs the chat-synth and encode pipelines and emits the
// interleaved transcript/audio stream as chat.completion.chunk events.
func (s *Server) streamChatAudio(w http.ResponseWriter, ctx context.Context, set *model.ResolvedSet, provider llm.Provider, req *oai.ChatRequest) {
	llmRec := set.LLM.Record
	ttsRec := set.TTS.Record

	format := "pcm"
	if req.Audio != nil && req.Audio.Format != "" {
		format = req.Audio.Format
	}
	if _, ok := oai.MediaType(format); !ok {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"unsupported audio format "+format)
		return
	}
	if (format == "mp3" || format == "ogg") && s.codec == nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"format "+format+" requires the audio transcoder, which is unavailable")
		return
	}

	synth, err := s.ttsFor(set.TTS)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	voice := ttsRec.Voice
	if req.Audio != nil && req.Audio.Voice != "" {
		voice = req.Audio.Voice
	}

	req.Messages = oai.InjectSpeechPrompt(req.Messages, llmRec.DefaultPrompt)
	req.Messages = oai.LimitMessages(req.Messages, llmRec.ContextSize)

	llmStream, err := provider.StreamChat(ctx, req)
	if err != nil {
		s.metrics.RecordUpstreamError(ctx, set.LLM.Record.ResolveName, "llm")
		writeUpstreamError(w, err)
		return
	}
	s.metrics.RecordUpstreamRequest(ctx, set.LLM.Record.ResolveName, "llm", "stream")
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

	items := pipeline.StreamChatSynth(ctx, llmStream, pipeline.ChatSynthConfig{
		Synth:       synth,
		Request:     tts.Request{Model: ttsRec.Model, Voice: voice, Speed: ttsRec.Speed},
		ContextSize: synthBudget(ttsRec),
		Segmenter:   segment.New(),
		Metrics:     s.metrics,
	})
	encoded, err := pipeline.EncodeStream(ctx, items, pipeline.EncodeConfig{
		Format:     format,
		SampleRate: ttsRec.Audio.SampleRate,
		Channels:   ttsRec.Audio.Channels,
		Codec:      s.encodeCodec(format, ttsRec),
		Metrics:    s.metrics,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, err.Error())
		return
	}

	sse := oai.NewSSEWriter(w)
	respID := oai.NewMessageID()
	audioID := oai.NewAudioID()
	created := time.Now().Unix()
	firstAudio := true

	emit := func(delta oai.ChatDelta, finish *string) bool {
		chunk := oai.ChatChunk{
			ID:      respID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []oai.ChatChunkChoice{{Delta: delta, FinishReason: finish}},
		}
		return sse.WriteJSON(&chunk) == nil
	}

	for item := range encoded {
		delta := oai.ChatDelta{}
		switch item.Kind {
		case pipeline.TextItem:
			delta.Audio = &oai.ChatDeltaAudio{Transcript: item.Text}
		case pipeline.AudioItem:
			delta.Audio = &oai.ChatDeltaAudio{Data: base64.StdEncoding.EncodeToString(item.Audio)}
		}
		if firstAudio {
			delta.Audio.ID = audioID
			firstAudio = false
		}
		if !emit(delta, nil) {
			return
		}
	}

	stop := "stop"
	if !emit(oai.ChatDelta{}, &stop) {
		return
	}
	if err := sse.WriteDone(); err != nil {
		slog.Debug("failed to terminate sse stream", "err", err)
	}
}
