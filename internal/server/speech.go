package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxgate/voxgate/internal/ffmpeg"
	"github.com/voxgate/voxgate/pkg/audio"
	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// defaultSpeechFormat is used when a speech request names no response
// format. WAV needs no codec subprocess and plays everywhere.
const defaultSpeechFormat = "wav"

// handleSpeech serves POST /oai/v1/audio/speech: one synthesis call, either
// streamed chunk by chunk or buffered into a single response body.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req oai.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, "invalid request body: "+err.Error())
		return
	}

	text := req.SpeechText()
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, errValidation, "input text is required")
		return
	}

	set, err := s.registry.Resolve(req.Model)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	if set.TTS == nil || set.LLM != nil || set.STT != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"audio/speech requires exactly one tts model")
		return
	}
	rec := set.TTS.Record

	format := req.ResponseFormat
	if format == "" {
		format = defaultSpeechFormat
	}
	mediaType, ok := oai.MediaType(format)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"unsupported response format "+format)
		return
	}
	if (format == "mp3" || format == "ogg") && s.codec == nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation,
			"format "+format+" requires the audio transcoder, which is unavailable")
		return
	}

	provider, err := s.ttsFor(set.TTS)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	voice := rec.Voice
	if req.Voice != "" {
		voice = req.Voice
	}
	speed := rec.Speed
	if req.Speed != 0 {
		speed = req.Speed
	}

	ctx := r.Context()
	synthReq := tts.Request{Model: rec.Model, Text: text, Voice: voice, Speed: speed}
	chunks, err := provider.StreamSpeech(ctx, synthReq)
	if err != nil {
		s.metrics.RecordUpstreamError(ctx, rec.ResolveName, "tts")
		writeUpstreamError(w, err)
		return
	}
	s.metrics.RecordUpstreamRequest(ctx, rec.ResolveName, "tts", "stream")

	// Bridge the synthesis stream into a plain byte stream; a mid-stream
	// error ends it early, observed by the client as a short body.
	pcm := make(chan []byte, 8)
	go func() {
		defer close(pcm)
		for c := range chunks {
			if c.Err != nil {
				slog.Error("tts stream failed mid-flight", "model", rec.ResolveName, "err", c.Err)
				return
			}
			if len(c.Data) == 0 {
				continue
			}
			select {
			case pcm <- c.Data:
			case <-ctx.Done():
				return
			}
		}
	}()

	out, err := s.speechBytes(ctx, format, rec.Audio.SampleRate, rec.Audio.Channels, pcm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	if req.Stream {
		s.metrics.ActiveStreams.Add(ctx, 1)
		defer s.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

		w.Header().Set("Content-Type", mediaType)
		flusher, _ := w.(http.Flusher)
		for b := range out {
			if _, err := w.Write(b); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		return
	}

	var buf bytes.Buffer
	for b := range out {
		buf.Write(b)
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `attachment; filename=speech.`+format)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("failed to write speech body", "err", err)
	}
}

// speechBytes adapts the raw PCM stream to the requested output format:
// passthrough for pcm, a prepended streaming header for wav, and an ffmpeg
// transcode for mp3 and ogg.
func (s *Server) speechBytes(ctx context.Context, format string, sampleRate, channels int, pcm <-chan []byte) (<-chan []byte, error) {
	switch format {
	case "pcm":
		return pcm, nil
	case "wav":
		out := make(chan []byte, 8)
		go func() {
			defer close(out)
			select {
			case out <- audio.WAVHeader(sampleRate, channels):
			case <-ctx.Done():
				return
			}
			for b := range pcm {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	default:
		return s.codec.Encode(ctx, pcm, ffmpeg.EncodeParams{
			Format:     format,
			SampleRate: sampleRate,
			Channels:   channels,
		})
	}
}
