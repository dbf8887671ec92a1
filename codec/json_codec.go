package codec

import (
	"encoding/json"
	"errors"

	"libgit2dart/message"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, easy to debug from any language.
// Cons: slower, and byte slices inside envelopes are base64 encoded.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	switch v.(type) {
	case *message.MethodCall, *message.Response:
		return json.Marshal(v)
	default:
		return nil, errors.New("JSONCodec: v must be *MethodCall or *Response")
	}
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) EncodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) DecodeValue(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
