package server_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/stt"
)

func dialRealtime(t *testing.T, f *fixture, modelParam string) (*websocket.Conn, context.Context) {
	t.Helper()

	ts := httptest.NewServer(f.handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/oai/v1/realtime?model=" + modelParam
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestRealtime_RequiresAllThreeKinds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	conn, ctx := dialRealtime(t, f, "gpt-oss-20b")

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("read succeeded on a rejected session")
	}
	if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
		t.Fatalf("close status = %v, want %v", got, websocket.StatusPolicyViolation)
	}
}

func TestRealtime_UnknownModelClosesPolicyViolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	conn, ctx := dialRealtime(t, f, "gpt-5%2Bkokoro%2Bparakeet")

	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
		t.Fatalf("close status = %v, want %v", got, websocket.StatusPolicyViolation)
	}
}

func TestRealtime_SpeaksOneTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stt.Events = []stt.Event{
		stt.Transcription{Text: "Hi", Timestamp: 1},
	}
	f.llm.StreamChunks = []llm.Chunk{
		{Text: "Hello. "},
		{FinishReason: "stop"},
	}
	f.tts.Chunks = [][]byte{[]byte("pcm-bytes")}

	conn, ctx := dialRealtime(t, f, "gpt-oss-20b%2Bkokoro%2Bparakeet")

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read audio frame: %v", err)
	}
	if typ != websocket.MessageBinary {
		t.Errorf("frame type = %v", typ)
	}
	if string(data) != "pcm-bytes" {
		t.Errorf("frame = %q", data)
	}

	// The mock transcription stream ends after one utterance, so the server
	// closes the session normally.
	_, _, err = conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusNormalClosure {
		t.Fatalf("close status = %v, want %v", got, websocket.StatusNormalClosure)
	}
}
