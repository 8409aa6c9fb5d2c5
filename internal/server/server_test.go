package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voxgate/voxgate/internal/ffmpeg"
	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/server"
	"github.com/voxgate/voxgate/pkg/oai"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	llmmock "github.com/voxgate/voxgate/pkg/provider/llm/mock"
	"github.com/voxgate/voxgate/pkg/provider/stt"
	sttmock "github.com/voxgate/voxgate/pkg/provider/stt/mock"
	"github.com/voxgate/voxgate/pkg/provider/tts"
	ttsmock "github.com/voxgate/voxgate/pkg/provider/tts/mock"
)

// passCodec is an in-process stand-in for the ffmpeg transcoder that
// forwards frames unchanged in both directions.
type passCodec struct{}

func (passCodec) Encode(ctx context.Context, in <-chan []byte, _ ffmpeg.EncodeParams) (<-chan []byte, error) {
	return forward(ctx, in), nil
}

func (passCodec) Decode(ctx context.Context, in <-chan []byte) (<-chan []byte, error) {
	return forward(ctx, in), nil
}

func forward(ctx context.Context, in <-chan []byte) <-chan []byte {
	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// fixture bundles a server over mock providers with every model running. The
// server records into a per-fixture meter provider so tests can inspect
// metrics without touching the global one.
type fixture struct {
	llm     *llmmock.Provider
	tts     *ttsmock.Provider
	stt     *sttmock.Provider
	reg     *model.Registry
	handler http.Handler
	metrics *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	reg, err := model.NewRegistry([]model.Endpoint{
		{Name: "gpt-oss-20b", Host: "llm", Port: 8080},
		{Name: "qwen3-4b", Host: "llm2", Port: 8081},
		{Name: "kokoro", Host: "tts", Port: 9000},
		{Name: "parakeet", Host: "stt", Port: 9100},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, m := range reg.Models() {
		m.Status.SetPingOK(true)
		m.Status.SetRequestOK(true)
	}

	f := &fixture{
		llm:     &llmmock.Provider{},
		tts:     &ttsmock.Provider{},
		stt:     &sttmock.Provider{},
		reg:     reg,
		metrics: reader,
	}

	srv, err := server.New(server.Config{
		Registry: reg,
		Providers: server.Providers{
			LLM: map[string]llm.Provider{"gpt-oss-20b": f.llm, "qwen3-4b": f.llm},
			TTS: map[string]tts.Provider{"kokoro": f.tts},
			STT: map[string]stt.Provider{"parakeet": f.stt},
		},
		Codec:   passCodec{},
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	f.handler = srv.Handler()
	return f
}

// markStopped clears the health flags of one model.
func (f *fixture) markStopped(t *testing.T, name string) {
	t.Helper()
	m, ok := f.reg.ByName(name)
	if !ok {
		t.Fatalf("model %s not registered", name)
	}
	m.Status.SetPingOK(false)
	m.Status.SetRequestOK(false)
}

// decodeSSE parses an SSE body into its chunk payloads and reports whether
// the [DONE] sentinel terminated the stream.
func decodeSSE(t *testing.T, body string) ([]oai.ChatChunk, bool) {
	t.Helper()
	var chunks []oai.ChatChunk
	done := false
	for _, line := range strings.Split(body, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var c oai.ChatChunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			t.Fatalf("decode chunk %q: %v", payload, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, done
}

// histogramCount returns the total sample count the fixture's server recorded
// for one histogram.
func (f *fixture) histogramCount(t *testing.T, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.metrics.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", name)
			}
			var total uint64
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
			return total
		}
	}
	return 0
}

// decodeError parses a JSON error body.
func decodeError(t *testing.T, body string) oai.ErrorResponse {
	t.Helper()
	var e oai.ErrorResponse
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e
}
