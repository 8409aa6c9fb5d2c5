package wire

import "fmt"

// Codec implements grpc's encoding.Codec over the hand-encoded [Message]
// types. It is passed per call via grpc.ForceCodec rather than registered
// globally.
type Codec struct{}

// Name reports the proto content subtype so the content-type header matches
// what the model servers expect.
func (Codec) Name() string { return "proto" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T, not a wire.Message", v)
	}
	return m.MarshalWire(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T, not a wire.Message", v)
	}
	return m.UnmarshalWire(data)
}
