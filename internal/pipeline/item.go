// Package pipeline implements the streaming fusion core of the gateway: it
// couples an LLM token stream to TTS synthesis and encodes the resulting
// interleaved text/audio stream for delivery.
//
// The stages compose as channels: sentence collection feeds batching, the
// chat-synth stage emits an interleaved Item stream, and the encode stage
// transforms PCM payloads into the client's output format while preserving
// the text/audio interleaving.
package pipeline

// ItemKind discriminates the members of the stream union.
type ItemKind int

const (
	// TextItem marks the start of a synthesis batch; Text carries the full
	// batch text.
	TextItem ItemKind = iota

	// AudioItem carries one audio payload: raw PCM out of the chat-synth
	// stage, encoded bytes out of the encode stage.
	AudioItem
)

// Item is one element of the interleaved synthesis stream. Every TextItem is
// followed by all AudioItems produced from that batch before the next
// TextItem appears.
type Item struct {
	Kind  ItemKind
	Text  string
	Audio []byte
}

// TextOf returns a text marker item.
func TextOf(s string) Item {
	return Item{Kind: TextItem, Text: s}
}

// AudioOf returns an audio payload item.
func AudioOf(b []byte) Item {
	return Item{Kind: AudioItem, Audio: b}
}
