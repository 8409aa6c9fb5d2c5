package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/pkg/audio"
)

// CodecFunc runs one encoder process over a PCM stream, returning the
// encoded byte stream. The returned channel must close when the input closes
// and the encoder has flushed, or when ctx is cancelled. Satisfied by
// ffmpeg.Codec with the parameters bound.
type CodecFunc func(ctx context.Context, in <-chan []byte) (<-chan []byte, error)

// EncodeConfig wires one encode-stage run.
type EncodeConfig struct {
	// Format is the output format: pcm, wav, mp3 or ogg.
	Format string

	// SampleRate and Channels describe the incoming PCM, used for the WAV
	// header.
	SampleRate int
	Channels   int

	// Codec spawns one encoder per PCM batch. Required for mp3 and ogg,
	// ignored for pcm and wav.
	Codec CodecFunc

	// Metrics is optional. When set, each encoder run's duration is
	// recorded.
	Metrics *observe.Metrics
}

// EncodeStream consumes the chat-synth item stream and emits items whose
// audio payloads are encoded in cfg.Format. Text markers pass through in
// order: a marker is emitted only after the audio of the preceding batch has
// fully drained through the encoder.
//
// For mp3 and ogg a fresh encoder runs per batch, so each batch's encoded
// bytes form an independently decodable stream. pcm passes audio through
// untouched; wav prepends a single streaming header.
func EncodeStream(ctx context.Context, in <-chan Item, cfg EncodeConfig) (<-chan Item, error) {
	switch cfg.Format {
	case "pcm":
		return passthrough(ctx, in, nil), nil
	case "wav":
		header := audio.WAVHeader(cfg.SampleRate, cfg.Channels)
		return passthrough(ctx, in, header), nil
	case "mp3", "ogg":
		if cfg.Codec == nil {
			return nil, fmt.Errorf("pipeline: format %q requires a codec", cfg.Format)
		}
		return transcode(ctx, in, cfg), nil
	default:
		return nil, fmt.Errorf("pipeline: unsupported output format %q", cfg.Format)
	}
}

// passthrough forwards items untouched, optionally emitting header before
// the first audio payload.
func passthrough(ctx context.Context, in <-chan Item, header []byte) <-chan Item {
	out := make(chan Item, 8)
	go func() {
		defer close(out)
		emit := func(item Item) bool {
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				if item.Kind == AudioItem && header != nil {
					if !emit(AudioOf(header)) {
						return
					}
					header = nil
				}
				if !emit(item) {
					return
				}
			}
		}
	}()
	return out
}

// transcode runs the per-batch encoder algorithm: one codec instance per
// contiguous run of audio items, restarted at every text marker so each
// batch flushes cleanly.
func transcode(ctx context.Context, in <-chan Item, cfg EncodeConfig) <-chan Item {
	out := make(chan Item, 8)

	go func() {
		defer close(out)

		emit := func(item Item) bool {
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			pcmCh     chan []byte
			encDone   chan struct{}
			encCancel context.CancelFunc
			encStart  time.Time
			hasAudio  bool
		)

		start := func() {
			encCtx, cancel := context.WithCancel(ctx)
			pcmCh = make(chan []byte, 8)
			encDone = make(chan struct{})
			encCancel = cancel
			encStart = time.Now()
			go runEncoder(encCtx, cfg.Codec, pcmCh, encDone, emit)
		}

		// Close the current batch's PCM feed and wait until its encoder has
		// flushed every encoded byte into out.
		finish := func() bool {
			close(pcmCh)
			select {
			case <-encDone:
				if cfg.Metrics != nil {
					cfg.Metrics.RecordEncode(ctx, cfg.Format, time.Since(encStart))
				}
				encCancel()
				return true
			case <-ctx.Done():
				encCancel()
				return false
			}
		}

		start()
		defer func() {
			if pcmCh != nil {
				encCancel()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					if hasAudio {
						if !finish() {
							return
						}
					} else {
						encCancel()
					}
					pcmCh = nil
					return
				}

				switch item.Kind {
				case TextItem:
					if hasAudio {
						if !finish() {
							pcmCh = nil
							return
						}
						start()
						hasAudio = false
					}
					if !emit(item) {
						return
					}
				case AudioItem:
					select {
					case pcmCh <- item.Audio:
						hasAudio = true
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}

// runEncoder drives one codec instance: PCM in, encoded items out. A codec
// failure loses this batch's audio but leaves the pipeline running.
func runEncoder(ctx context.Context, codec CodecFunc, pcm <-chan []byte, done chan<- struct{}, emit func(Item) bool) {
	defer close(done)

	encoded, err := codec(ctx, pcm)
	if err != nil {
		slog.Error("encoder failed to start", "err", err)
		// Drain so the processor never blocks on a dead batch.
		for {
			select {
			case _, ok := <-pcm:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
	for b := range encoded {
		if len(b) == 0 {
			continue
		}
		if !emit(AudioOf(b)) {
			return
		}
	}
}
