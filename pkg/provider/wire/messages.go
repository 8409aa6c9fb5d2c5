// Package wire holds the gRPC message types for the TTS and STT model
// servers, hand-encoded with protowire against the schemas in proto/. The
// upstream services are tiny and stable, so the messages are maintained by
// hand instead of through protoc.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every wire type; [Codec] marshals through it.
type Message interface {
	MarshalWire() []byte
	UnmarshalWire(data []byte) error
}

// Fully qualified method names, matching the service definitions in proto/.
const (
	MethodStreamAudio    = "/tts_audio.ProtoAudioStream/StreamAudio"
	MethodAudioPing      = "/tts_audio.ProtoAudioStream/Ping"
	MethodTranscribe     = "/stt_service.ProtoTranscribe/Transcribe"
	MethodTranscribePing = "/stt_service.ProtoTranscribe/Ping"
)

// AudioPost is the request for ProtoAudioStream.StreamAudio.
type AudioPost struct {
	Model string
	Text  string
	Voice string
	Speed float64
}

func (m *AudioPost) MarshalWire() []byte {
	var b []byte
	if m.Model != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Model)
	}
	if m.Text != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.Text)
	}
	if m.Voice != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.Voice)
	}
	if m.Speed != 0 {
		b = protowire.AppendTag(b, 4, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Speed))
	}
	return b
}

func (m *AudioPost) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.Model)
		case 2:
			return consumeString(b, &m.Text)
		case 3:
			return consumeString(b, &m.Voice)
		case 4:
			return consumeDouble(b, &m.Speed)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// AudioResp is one PCM chunk from ProtoAudioStream.StreamAudio.
type AudioResp struct {
	Data []byte
}

func (m *AudioResp) MarshalWire() []byte {
	var b []byte
	if len(m.Data) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data)
	}
	return b
}

func (m *AudioResp) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBytes(b, &m.Data)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// PingRequest is the empty health-probe request shared by both services.
type PingRequest struct{}

func (m *PingRequest) MarshalWire() []byte { return nil }

func (m *PingRequest) UnmarshalWire(data []byte) error { return nil }

// PingResponse carries the health-probe status string, "ok" when healthy.
type PingResponse struct {
	Status string
}

func (m *PingResponse) MarshalWire() []byte {
	var b []byte
	if m.Status != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Status)
	}
	return b
}

func (m *PingResponse) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(b, &m.Status)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// TranscribeStreamingConfig opens a ProtoTranscribe.Transcribe stream.
type TranscribeStreamingConfig struct {
	Model string
}

func (m *TranscribeStreamingConfig) MarshalWire() []byte {
	var b []byte
	if m.Model != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Model)
	}
	return b
}

func (m *TranscribeStreamingConfig) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(b, &m.Model)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// TranscribePost is one client message on the Transcribe stream: a config on
// the first message, raw PCM audio on every message after.
type TranscribePost struct {
	Config *TranscribeStreamingConfig
	Audio  []byte
}

func (m *TranscribePost) MarshalWire() []byte {
	var b []byte
	if m.Config != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Config.MarshalWire())
	}
	if len(m.Audio) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Audio)
	}
	return b
}

func (m *TranscribePost) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			cfg := &TranscribeStreamingConfig{}
			if err := cfg.UnmarshalWire(sub); err != nil {
				return n, err
			}
			m.Config = cfg
			return n, nil
		case 2:
			return consumeBytes(b, &m.Audio)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// TranscribeEvent is the closed set of STT stream events.
type TranscribeEvent interface {
	Message
	isTranscribeEvent()
}

// SpeechStart reports that voice activity began.
type SpeechStart struct {
	Timestamp float64
}

func (*SpeechStart) isTranscribeEvent() {}

func (m *SpeechStart) MarshalWire() []byte {
	var b []byte
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Timestamp))
	}
	return b
}

func (m *SpeechStart) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeDouble(b, &m.Timestamp)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// SpeechStop reports that voice activity ended.
type SpeechStop struct {
	Timestamp float64
}

func (*SpeechStop) isTranscribeEvent() {}

func (m *SpeechStop) MarshalWire() []byte {
	var b []byte
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Timestamp))
	}
	return b
}

func (m *SpeechStop) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeDouble(b, &m.Timestamp)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// SpeechTranscription carries one finalized user utterance.
type SpeechTranscription struct {
	Text      string
	Timestamp float64
}

func (*SpeechTranscription) isTranscribeEvent() {}

func (m *SpeechTranscription) MarshalWire() []byte {
	var b []byte
	if m.Text != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Text)
	}
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Timestamp))
	}
	return b
}

func (m *SpeechTranscription) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.Text)
		case 2:
			return consumeDouble(b, &m.Timestamp)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// TranscribeResp is one server message on the Transcribe stream. Exactly one
// event variant is set; Event is nil if the server sent an unknown variant.
type TranscribeResp struct {
	Event TranscribeEvent
}

func (m *TranscribeResp) MarshalWire() []byte {
	var b []byte
	var num protowire.Number
	switch m.Event.(type) {
	case *SpeechStart:
		num = 1
	case *SpeechStop:
		num = 2
	case *SpeechTranscription:
		num = 3
	default:
		return nil
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Event.MarshalWire())
	return b
}

func (m *TranscribeResp) UnmarshalWire(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var ev TranscribeEvent
		switch num {
		case 1:
			ev = &SpeechStart{}
		case 2:
			ev = &SpeechStop{}
		case 3:
			ev = &SpeechTranscription{}
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		sub, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, protowire.ParseError(n)
		}
		if err := ev.UnmarshalWire(sub); err != nil {
			return n, err
		}
		m.Event = ev
		return n, nil
	})
}

// walkFields iterates the top-level fields of data, dispatching each to
// handle. handle returns the number of value bytes consumed.
func walkFields(data []byte, handle func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		n, err := handle(num, typ, data)
		if err != nil {
			return fmt.Errorf("wire: field %d: %w", num, err)
		}
		if n < 0 {
			return fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return nil
}

func consumeString(b []byte, dst *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}

func consumeBytes(b []byte, dst *[]byte) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	*dst = out
	return n, nil
}

func consumeDouble(b []byte, dst *float64) (int, error) {
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}
