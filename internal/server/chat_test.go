package server_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
)

func postChat(t *testing.T, f *fixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/oai/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletions_StreamsText(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.StreamChunks = []llm.Chunk{
		{Text: "Hel"},
		{Text: "lo"},
		{FinishReason: "stop"},
	}

	rec := postChat(t, f, `{"model":"gpt-oss-20b","stream":true,"messages":[{"role":"user","content":"Hi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	chunks, done := decodeSSE(t, rec.Body.String())
	if !done {
		t.Error("stream did not end with [DONE]")
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if got := chunks[0].Delta().Content; got != "Hel" {
		t.Errorf("first delta = %q", got)
	}
	if got := chunks[1].Delta().Content; got != "lo" {
		t.Errorf("second delta = %q", got)
	}
	last := chunks[2].Choices[0]
	if last.FinishReason == nil || *last.FinishReason != "stop" {
		t.Errorf("final finish_reason = %v", last.FinishReason)
	}
	for i, c := range chunks {
		if c.Model != "gpt-oss-20b" {
			t.Errorf("chunk %d model = %q", i, c.Model)
		}
		if c.Delta() != nil && c.Delta().Audio != nil {
			t.Errorf("chunk %d carries audio on a text-only request", i)
		}
	}
}

func TestChatCompletions_RewritesUpstreamModel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.StreamChunks = []llm.Chunk{
		{
			Raw:  []byte(`{"id":"cmpl-7","object":"chat.completion.chunk","created":5,"model":"unsloth/gpt-oss-20b-GGUF","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null}]}`),
			Text: "Hi",
		},
	}

	rec := postChat(t, f, `{"model":"gpt-oss-20b","stream":true,"messages":[{"role":"user","content":"Hi"}]}`)

	chunks, _ := decodeSSE(t, rec.Body.String())
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Model != "gpt-oss-20b" {
		t.Errorf("model = %q, want the client-facing name", chunks[0].Model)
	}
	if chunks[0].ID != "cmpl-7" {
		t.Errorf("id = %q, want the upstream id preserved", chunks[0].ID)
	}
	if chunks[0].Delta().Content != "Hi" {
		t.Errorf("content = %q", chunks[0].Delta().Content)
	}
}

func TestChatCompletions_AudioModality(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.StreamChunks = []llm.Chunk{
		{Text: "Hello. "},
		{FinishReason: "stop"},
	}
	f.tts.Chunks = [][]byte{make([]byte, 48000)}

	rec := postChat(t, f, `{"model":"gpt-oss-20b+kokoro","stream":true,"modalities":["text","audio"],"audio":{"format":"pcm"},"messages":[{"role":"user","content":"Say one word"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	chunks, done := decodeSSE(t, rec.Body.String())
	if !done {
		t.Error("stream did not end with [DONE]")
	}

	audioIDRe := regexp.MustCompile(`^audio_[0-9a-f]{24}$`)
	var sawTranscript, sawData bool
	for _, c := range chunks {
		d := c.Delta()
		if d == nil || d.Audio == nil {
			continue
		}
		if d.Audio.Transcript == "Hello." {
			sawTranscript = true
			if !audioIDRe.MatchString(d.Audio.ID) {
				t.Errorf("first audio chunk id = %q", d.Audio.ID)
			}
		}
		if d.Audio.Data != "" {
			raw, err := base64.StdEncoding.DecodeString(d.Audio.Data)
			if err != nil {
				t.Fatalf("decode audio data: %v", err)
			}
			if len(raw) == 48000 {
				sawData = true
			}
		}
	}
	if !sawTranscript {
		t.Error("no chunk carried the transcript")
	}
	if !sawData {
		t.Error("no chunk carried the 48000-byte PCM payload")
	}

	last := chunks[len(chunks)-1].Choices[0]
	if last.FinishReason == nil || *last.FinishReason != "stop" {
		t.Errorf("final finish_reason = %v", last.FinishReason)
	}

	// The upstream request carries the speech guidance system prompt.
	msgs := f.llm.StreamCalls[0].Messages
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, oai.SpeechStylePrompt) {
		t.Errorf("first upstream message = %+v, want the speech style prompt", msgs[0])
	}
}

func TestChatCompletions_ForwardsNonStreaming(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.ForwardResult = &llm.ForwardResult{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"object":"chat.completion"}`),
	}

	rec := postChat(t, f, `{"model":"gpt-oss-20b","messages":[{"role":"user","content":"Hi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != `{"object":"chat.completion"}` {
		t.Errorf("body = %q", got)
	}

	var forwarded map[string]any
	if err := json.Unmarshal(f.llm.ForwardCalls[0], &forwarded); err != nil {
		t.Fatalf("decode forwarded body: %v", err)
	}
	if forwarded["model"] != "unsloth/gpt-oss-20b-GGUF" {
		t.Errorf("forwarded model = %v, want the upstream identifier", forwarded["model"])
	}
	if _, ok := forwarded["modalities"]; ok {
		t.Error("gateway-only modalities field reached the upstream")
	}
}

func TestChatCompletions_ForwardsUpstreamErrorVerbatim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.ForwardResult = &llm.ForwardResult{
		StatusCode:  http.StatusBadRequest,
		ContentType: "application/json",
		Body:        []byte(`{"error":{"message":"bad grammar","type":"invalid_request_error"}}`),
	}

	rec := postChat(t, f, `{"model":"gpt-oss-20b","messages":[{"role":"user","content":"Hi"}]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want the upstream status", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bad grammar") {
		t.Errorf("body = %q, want the upstream body verbatim", rec.Body)
	}
}

func TestChatCompletions_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		stopped    string
		wantStatus int
		wantType   string
	}{
		{
			name:       "unknown model",
			body:       `{"model":"gpt-5","stream":true,"messages":[]}`,
			wantStatus: http.StatusNotFound,
			wantType:   "model_not_found",
		},
		{
			name:       "model not running",
			body:       `{"model":"gpt-oss-20b","stream":true,"messages":[]}`,
			stopped:    "gpt-oss-20b",
			wantStatus: http.StatusBadRequest,
			wantType:   "model_not_running",
		},
		{
			name:       "two llm models",
			body:       `{"model":"gpt-oss-20b+qwen3-4b","stream":true,"messages":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "audio without tts slot",
			body:       `{"model":"gpt-oss-20b","stream":true,"modalities":["audio"],"messages":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "audio without streaming",
			body:       `{"model":"gpt-oss-20b+kokoro","modalities":["audio"],"messages":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "tts model without audio modality",
			body:       `{"model":"gpt-oss-20b+kokoro","stream":true,"messages":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "duplicate system messages",
			body:       `{"model":"gpt-oss-20b","stream":true,"messages":[{"role":"system","content":"a"},{"role":"system","content":"b"}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "stt model in chat",
			body:       `{"model":"gpt-oss-20b+parakeet","stream":true,"messages":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			if tt.stopped != "" {
				f.markStopped(t, tt.stopped)
			}

			rec := postChat(t, f, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decodeError(t, rec.Body.String()).Error.Type; got != tt.wantType {
				t.Errorf("error type = %q, want %q", got, tt.wantType)
			}
		})
	}
}
