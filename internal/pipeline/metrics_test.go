package pipeline_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/segment"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/tts"
	ttsmock "github.com/voxgate/voxgate/pkg/provider/tts/mock"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// histogramCount returns the total sample count recorded for a histogram, or
// zero when no samples were recorded.
func histogramCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
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

func TestStreamChatSynth_RecordsLatencies(t *testing.T) {
	t.Parallel()
	metrics, reader := newTestMetrics(t)

	synth := &ttsmock.Provider{Chunks: [][]byte{[]byte("pcm")}}
	cfg := pipeline.ChatSynthConfig{
		Synth:       synth,
		Request:     tts.Request{Model: "kokoro"},
		ContextSize: 16,
		Segmenter:   segment.New(),
		Metrics:     metrics,
	}

	stream := llmStreamOf(
		llm.Chunk{Text: "First one. "},
		llm.Chunk{Text: "Second one."},
		llm.Chunk{FinishReason: "stop"},
	)
	collectItems(t, pipeline.StreamChatSynth(context.Background(), stream, cfg))

	// One gap per received chunk, one synthesis duration per batch.
	if got := histogramCount(t, reader, "voxgate.llm.chunk_latency"); got != 3 {
		t.Errorf("chunk gap samples = %d, want 3", got)
	}
	if got := histogramCount(t, reader, "voxgate.tts.duration"); got != 2 {
		t.Errorf("synthesis duration samples = %d, want 2", got)
	}
}

func TestEncodeStream_RecordsEncoderDuration(t *testing.T) {
	t.Parallel()
	metrics, reader := newTestMetrics(t)

	codec := &doublingCodec{}
	in := itemStreamOf(
		pipeline.TextOf("one"),
		pipeline.AudioOf([]byte("aa")),
		pipeline.TextOf("two"),
		pipeline.AudioOf([]byte("bb")),
	)
	out, err := pipeline.EncodeStream(context.Background(), in, pipeline.EncodeConfig{
		Format:  "mp3",
		Codec:   codec.run,
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("EncodeStream: %v", err)
	}
	collectItems(t, out)

	// One encoder ran per audio-bearing batch.
	if got := histogramCount(t, reader, "voxgate.encode.duration"); got != 2 {
		t.Errorf("encode duration samples = %d, want 2", got)
	}
}
