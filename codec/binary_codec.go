package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"libgit2dart/message"
)

// Envelope tags, first byte of every binary body.
const (
	tagCall     byte = 'C'
	tagResponse byte = 'R'
)

// BinaryCodec lays envelopes out as length-prefixed big-endian fields and
// encodes values as CBOR.
//
// MethodCall: tag | u16 channel | u16 method | u32 arguments
// Response:   tag | u16 channel | u16 method | status | u32 result | u16 code | u16 message | u32 details
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.MethodCall:
		w := newWriter(1 + 2 + len(msg.Channel) + 2 + len(msg.Method) + 4 + len(msg.Arguments))
		w.u8(tagCall)
		if err := w.str16(msg.Channel); err != nil {
			return nil, err
		}
		if err := w.str16(msg.Method); err != nil {
			return nil, err
		}
		w.bytes32(msg.Arguments)
		return w.buf, nil
	case *message.Response:
		w := newWriter(1 + 2 + len(msg.Channel) + 2 + len(msg.Method) + 1 +
			4 + len(msg.Result) + 2 + len(msg.ErrorCode) + 2 + len(msg.ErrorMessage) + 4 + len(msg.ErrorDetails))
		w.u8(tagResponse)
		for _, s := range []string{msg.Channel, msg.Method} {
			if err := w.str16(s); err != nil {
				return nil, err
			}
		}
		w.u8(byte(msg.Status))
		w.bytes32(msg.Result)
		for _, s := range []string{msg.ErrorCode, msg.ErrorMessage} {
			if err := w.str16(s); err != nil {
				return nil, err
			}
		}
		w.bytes32(msg.ErrorDetails)
		return w.buf, nil
	default:
		return nil, errors.New("BinaryCodec: v must be *MethodCall or *Response")
	}
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	r := &reader{data: data}
	tag := r.u8()

	switch msg := v.(type) {
	case *message.MethodCall:
		if tag != tagCall {
			return fmt.Errorf("BinaryCodec: expected call tag, got %q", tag)
		}
		msg.Channel = r.str16()
		msg.Method = r.str16()
		msg.Arguments = r.bytes32()
	case *message.Response:
		if tag != tagResponse {
			return fmt.Errorf("BinaryCodec: expected response tag, got %q", tag)
		}
		msg.Channel = r.str16()
		msg.Method = r.str16()
		msg.Status = message.Status(r.u8())
		msg.Result = r.bytes32()
		msg.ErrorCode = r.str16()
		msg.ErrorMessage = r.str16()
		msg.ErrorDetails = r.bytes32()
	default:
		return errors.New("BinaryCodec: v must be *MethodCall or *Response")
	}
	return r.err
}

func (c *BinaryCodec) EncodeValue(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c *BinaryCodec) DecodeValue(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return cbor.Unmarshal(data, v)
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) u8(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) str16(s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("BinaryCodec: field too long (%d bytes)", len(s))
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *writer) bytes32(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader records the first short read and returns zero values afterwards.
type reader struct {
	data []byte
	off  int
	err  error
}

var errShortBuffer = errors.New("BinaryCodec: short buffer")

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) str16() string {
	l := r.take(2)
	if l == nil {
		return ""
	}
	return string(r.take(int(binary.BigEndian.Uint16(l))))
}

func (r *reader) bytes32() []byte {
	l := r.take(4)
	if l == nil {
		return nil
	}
	n := binary.BigEndian.Uint32(l)
	if n == 0 {
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
