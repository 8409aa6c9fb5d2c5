// Package kokoro provides a TTS provider backed by a Kokoro model server
// speaking the ProtoAudioStream gRPC service.
package kokoro

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/voxgate/voxgate/pkg/provider/tts"
	"github.com/voxgate/voxgate/pkg/provider/wire"
)

var streamAudioDesc = grpc.StreamDesc{
	StreamName:    "StreamAudio",
	ServerStreams: true,
}

// Client implements tts.Provider over a gRPC connection. The connection is
// lazy; dialing happens on the first RPC.
type Client struct {
	conn *grpc.ClientConn
}

// New constructs a Client for the server at addr (host:port, plaintext).
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("kokoro: connect %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StreamSpeech implements tts.Provider.
func (c *Client) StreamSpeech(ctx context.Context, req tts.Request) (<-chan tts.Chunk, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := c.conn.NewStream(ctx, &streamAudioDesc, wire.MethodStreamAudio, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kokoro: open stream: %w", err)
	}
	post := &wire.AudioPost{
		Model: req.Model,
		Text:  req.Text,
		Voice: req.Voice,
		Speed: req.Speed,
	}
	if err := stream.SendMsg(post); err != nil {
		cancel()
		return nil, fmt.Errorf("kokoro: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("kokoro: close send: %w", err)
	}

	ch := make(chan tts.Chunk, 8)
	go func() {
		defer close(ch)
		defer cancel()

		for {
			resp := &wire.AudioResp{}
			err := stream.RecvMsg(resp)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					select {
					case ch <- tts.Chunk{Err: fmt.Errorf("kokoro: recv: %w", err)}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case ch <- tts.Chunk{Data: resp.Data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Ping implements tts.Provider.
func (c *Client) Ping(ctx context.Context) error {
	resp := &wire.PingResponse{}
	err := c.conn.Invoke(ctx, wire.MethodAudioPing, &wire.PingRequest{}, resp, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		return fmt.Errorf("kokoro: ping: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("kokoro: ping status %q", resp.Status)
	}
	return nil
}

// Ensure Client implements tts.Provider at compile time.
var _ tts.Provider = (*Client)(nil)
