// Package parakeet provides an STT provider backed by a Parakeet model
// server speaking the ProtoTranscribe gRPC service.
package parakeet

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/voxgate/voxgate/pkg/provider/stt"
	"github.com/voxgate/voxgate/pkg/provider/wire"
)

var transcribeDesc = grpc.StreamDesc{
	StreamName:    "Transcribe",
	ServerStreams: true,
	ClientStreams: true,
}

// Client implements stt.Provider over a gRPC connection. The connection is
// lazy; dialing happens on the first RPC.
type Client struct {
	conn  *grpc.ClientConn
	model string
}

// New constructs a Client for the server at addr (host:port, plaintext)
// serving the given upstream model identifier.
func New(addr, model string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("parakeet: connect %s: %w", addr, err)
	}
	return &Client{conn: conn, model: model}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StreamTranscribe implements stt.Provider. The first message on the wire is
// the streaming config; every audio frame follows as its own message.
func (c *Client) StreamTranscribe(ctx context.Context, audio <-chan []byte) (<-chan stt.Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := c.conn.NewStream(ctx, &transcribeDesc, wire.MethodTranscribe, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("parakeet: open stream: %w", err)
	}
	cfg := &wire.TranscribePost{
		Config: &wire.TranscribeStreamingConfig{Model: c.model},
	}
	if err := stream.SendMsg(cfg); err != nil {
		cancel()
		return nil, fmt.Errorf("parakeet: send config: %w", err)
	}

	// Send side: forward audio frames until the caller closes the channel.
	go func() {
		defer stream.CloseSend()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-audio:
				if !ok {
					return
				}
				if len(frame) == 0 {
					continue
				}
				if err := stream.SendMsg(&wire.TranscribePost{Audio: frame}); err != nil {
					// Recv side surfaces the stream error.
					return
				}
			}
		}
	}()

	ch := make(chan stt.Event, 8)
	go func() {
		defer close(ch)
		defer cancel()

		for {
			resp := &wire.TranscribeResp{}
			err := stream.RecvMsg(resp)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					select {
					case ch <- stt.StreamError{Err: fmt.Errorf("parakeet: recv: %w", err)}:
					case <-ctx.Done():
					}
				}
				return
			}

			var ev stt.Event
			switch e := resp.Event.(type) {
			case *wire.SpeechStart:
				ev = stt.SpeechStart{Timestamp: e.Timestamp}
			case *wire.SpeechStop:
				ev = stt.SpeechStop{Timestamp: e.Timestamp}
			case *wire.SpeechTranscription:
				ev = stt.Transcription{Text: e.Text, Timestamp: e.Timestamp}
			default:
				// Unknown variant from a newer server; skip.
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Ping implements stt.Provider.
func (c *Client) Ping(ctx context.Context) error {
	resp := &wire.PingResponse{}
	err := c.conn.Invoke(ctx, wire.MethodTranscribePing, &wire.PingRequest{}, resp, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		return fmt.Errorf("parakeet: ping: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("parakeet: ping status %q", resp.Status)
	}
	return nil
}

// Ensure Client implements stt.Provider at compile time.
var _ stt.Provider = (*Client)(nil)
