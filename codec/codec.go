// Package codec serializes method channel envelopes and the values they carry.
//
// Two formats are supported. Both encode MethodCall and Response envelopes and
// the argument/result values embedded in them:
//
//	JSON:   envelopes and values as encoding/json
//	Binary: length-prefixed envelope layout, values as CBOR
package codec

import (
	"context"
	"fmt"
	"strings"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

type Codec interface {
	// Encode and Decode handle *message.MethodCall and *message.Response.
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	// EncodeValue and DecodeValue handle arguments and results.
	EncodeValue(v any) ([]byte, error)
	DecodeValue(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}

// ParseCodecType maps a configuration name to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return CodecTypeJSON, nil
	case "binary", "cbor":
		return CodecTypeBinary, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

type ctxKey struct{}

// NewContext returns a context carrying the codec a call arrived with, so
// handlers reply in the caller's format.
func NewContext(ctx context.Context, c Codec) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the codec stored by NewContext, or JSON.
func FromContext(ctx context.Context) Codec {
	if c, ok := ctx.Value(ctxKey{}).(Codec); ok {
		return c
	}
	return &JSONCodec{}
}
