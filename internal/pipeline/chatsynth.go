package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

const (
	// llmChunkTimeout bounds the wait for each upstream LLM chunk.
	llmChunkTimeout = 30 * time.Second

	// ttsChunkTimeout bounds the wait for each upstream PCM chunk.
	ttsChunkTimeout = 10 * time.Second

	// sentenceQueueCap is the backpressure bound between the sentence
	// producer and the batching consumer.
	sentenceQueueCap = 64
)

// Synthesizer is the TTS side of the chat-synth stage. Satisfied by
// tts.Provider.
type Synthesizer interface {
	StreamSpeech(ctx context.Context, req tts.Request) (<-chan tts.Chunk, error)
}

// ChatSynthConfig wires one chat-synth run.
type ChatSynthConfig struct {
	// Synth streams PCM for each batch.
	Synth Synthesizer

	// Request is the synthesis template; Text is filled per batch.
	Request tts.Request

	// ContextSize is the TTS context budget bounding batch length.
	ContextSize int

	// Segmenter splits buffered LLM output into sentences.
	Segmenter Segmenter

	// Metrics is optional. When set, chunk gaps and per-batch synthesis
	// durations are recorded.
	Metrics *observe.Metrics
}

// StreamChatSynth couples an LLM chunk stream to TTS synthesis. The returned
// channel interleaves one TextItem per batch with the AudioItems synthesised
// from it, and closes when the LLM stream ends and all batches are
// synthesised, or when ctx is cancelled.
//
// Failures degrade rather than abort: an LLM stream error ends sentence
// production early, and a synthesis failure for one batch is logged while
// the stream continues with the next batch.
func StreamChatSynth(parent context.Context, llmStream <-chan llm.Chunk, cfg ChatSynthConfig) <-chan Item {
	ctx, cancel := context.WithCancel(parent)
	sentences := make(chan string, sentenceQueueCap)
	out := make(chan Item, 8)

	go produceSentences(ctx, llmStream, cfg, sentences)
	go func() {
		defer close(out)
		defer cancel()
		consumeSentences(ctx, sentences, cfg, out)
	}()

	return out
}

// produceSentences feeds LLM delta content through a sentence collector into
// the sentences channel. Closing the channel is the end-of-stream sentinel.
func produceSentences(ctx context.Context, llmStream <-chan llm.Chunk, cfg ChatSynthConfig, sentences chan<- string) {
	defer close(sentences)

	collector := NewCollector(cfg.Segmenter)
	emit := func(batch []string) bool {
		for _, s := range batch {
			select {
			case sentences <- s:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	timer := time.NewTimer(llmChunkTimeout)
	defer timer.Stop()

	last := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			slog.Warn("llm stream timed out waiting for chunk")
			break loop
		case chunk, ok := <-llmStream:
			if !ok {
				break loop
			}
			if cfg.Metrics != nil {
				cfg.Metrics.RecordLLMChunkGap(ctx, time.Since(last))
			}
			last = time.Now()
			if chunk.FinishReason == "error" {
				slog.Error("llm stream failed", "err", chunk.Text)
				break loop
			}
			if chunk.Text != "" {
				if !emit(collector.Put(chunk.Text)) {
					return
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(llmChunkTimeout)
		}
	}

	emit(collector.Flush())
}

// consumeSentences batches sentences greedily and, per batch, emits the text
// marker followed by its synthesised PCM chunks.
func consumeSentences(ctx context.Context, sentences <-chan string, cfg ChatSynthConfig, out chan<- Item) {
	batcher := NewBatcher(cfg.ContextSize)
	var pending string
	havePending := false
	done := false

	emit := func(item Item) bool {
		select {
		case out <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		// Acquire the first sentence of the next batch.
		if !havePending {
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case s, ok := <-sentences:
				if !ok {
					return
				}
				pending, havePending = s, true
			}
		}

		batcher.TryAdd(pending)
		havePending = false

		// Greedily drain sentences that are already waiting.
	greedy:
		for {
			select {
			case s, ok := <-sentences:
				if !ok {
					done = true
					break greedy
				}
				if !batcher.TryAdd(s) {
					pending, havePending = s, true
					break greedy
				}
			default:
				break greedy
			}
		}

		text := batcher.Text()
		batcher.Reset()

		if !emit(TextOf(text)) {
			return
		}
		synthesizeBatch(ctx, cfg, text, emit)

		if done && !havePending {
			return
		}
	}
}

// synthesizeBatch streams PCM for one batch into out. Errors and chunk
// timeouts are logged; the batch's remaining audio is dropped and the caller
// proceeds with the next batch.
func synthesizeBatch(parent context.Context, cfg ChatSynthConfig, text string, emit func(Item) bool) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	req := cfg.Request
	req.Text = text

	ch, err := cfg.Synth.StreamSpeech(ctx, req)
	if err != nil {
		slog.Error("tts stream failed to start", "err", err)
		return
	}

	if cfg.Metrics != nil {
		start := time.Now()
		defer func() {
			cfg.Metrics.RecordTTSSynthesis(parent, req.Model, time.Since(start))
		}()
	}

	timer := time.NewTimer(ttsChunkTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			slog.Warn("tts stream timed out waiting for chunk")
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			if chunk.Err != nil {
				slog.Error("tts stream failed", "err", chunk.Err)
				return
			}
			if len(chunk.Data) > 0 {
				if !emit(AudioOf(chunk.Data)) {
					return
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(ttsChunkTimeout)
		}
	}
}
