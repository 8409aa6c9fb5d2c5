// Package ffmpeg wraps an ffmpeg subprocess as a streaming audio codec.
//
// Two directions are supported: encoding raw 32-bit float PCM into a
// compressed container (mp3, ogg) and decoding arbitrary uploaded audio into
// the 16 kHz mono float PCM the STT models expect. Each call spawns one
// process whose lifetime is scoped to the input channel and context: when
// the input closes the process drains and exits, and on cancellation it is
// terminated, then killed after a 2 second grace period.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// terminationGrace is how long a cancelled process gets to exit after
// SIGTERM before it is killed.
const terminationGrace = 2 * time.Second

// readSize is the stdout read granularity, approx 21 ms of 24 kHz mono
// float PCM per read.
const readSize = 4096

// EncodeParams describes one encoding run.
type EncodeParams struct {
	// Format is the output container: "mp3" or "ogg".
	Format string

	// SampleRate and Channels describe the incoming PCM.
	SampleRate int
	Channels   int
}

// Codec spawns ffmpeg processes. The zero value is not usable; construct
// with New.
type Codec struct {
	path string
}

// Option is a functional option for Codec.
type Option func(*Codec)

// WithPath overrides the ffmpeg binary path. Used in tests.
func WithPath(path string) Option {
	return func(c *Codec) {
		c.path = path
	}
}

// New locates the ffmpeg binary and returns a Codec.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{}
	for _, o := range opts {
		o(c)
	}
	if c.path == "" {
		path, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: not found in PATH: %w", err)
		}
		c.path = path
	}
	return c, nil
}

// Encode transcodes float PCM from in into the format given by p. The
// returned channel closes when the input closes and the encoder has been
// drained, or when ctx is cancelled. Encoder failures are logged; the
// channel then closes early.
func (c *Codec) Encode(ctx context.Context, in <-chan []byte, p EncodeParams) (<-chan []byte, error) {
	args, err := encodeArgs(p)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, args, in)
}

// Decode converts any audio container readable by ffmpeg into raw 16 kHz
// mono float PCM, the input format of the STT models.
func (c *Codec) Decode(ctx context.Context, in <-chan []byte) (<-chan []byte, error) {
	return c.run(ctx, decodeArgs(), in)
}

// encodeArgs builds the argument list for one PCM encoding run.
func encodeArgs(p EncodeParams) ([]string, error) {
	args := []string{
		"-f", "f32le",
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-i", "pipe:0",
	}
	switch p.Format {
	case "mp3":
		args = append(args, "-f", "mp3", "-b:a", "128k")
	case "ogg":
		args = append(args, "-f", "ogg", "-c:a", "libopus", "-b:a", "32k")
	default:
		return nil, fmt.Errorf("ffmpeg: unsupported format %q", p.Format)
	}
	return append(args, "pipe:1"), nil
}

// decodeArgs builds the argument list for decoding to STT input PCM.
func decodeArgs() []string {
	return []string{
		"-i", "pipe:0",
		"-f", "f32le",
		"-ac", "1",
		"-ar", "16000",
		"-vn",
		"pipe:1",
	}
}

// run spawns one ffmpeg process, feeds it from in and returns its stdout as
// a channel.
func (c *Codec) run(ctx context.Context, args []string, in <-chan []byte) (<-chan []byte, error) {
	cmd := exec.Command(c.path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	// Feeder: forward PCM until the input closes, the context is cancelled
	// or the process stops accepting writes.
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}
				if _, err := stdin.Write(chunk); err != nil {
					return
				}
			}
		}
	}()

	// Terminator: on cancellation send SIGTERM, escalate to SIGKILL after
	// the grace period. The reader goroutine reaps the process.
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-readerDone:
		case <-ctx.Done():
			cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-readerDone:
			case <-time.After(terminationGrace):
				cmd.Process.Kill()
			}
		}
	}()

	out := make(chan []byte, 8)
	go func() {
		defer close(readerDone)
		defer close(out)

		for {
			buf := make([]byte, readSize)
			n, err := stdout.Read(buf)
			if n > 0 {
				select {
				case out <- buf[:n]:
				case <-ctx.Done():
				}
			}
			if err != nil {
				break
			}
		}

		<-feederDone
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			slog.Error("ffmpeg exited with error",
				"err", err,
				"stderr", stderrTail(&stderr),
			)
		}
	}()

	return out, nil
}

// stderrTail returns the last part of the captured stderr, enough for the
// actual error line without the banner noise.
func stderrTail(buf *bytes.Buffer) string {
	const max = 1024
	s := buf.String()
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
