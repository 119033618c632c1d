// Package relaymsg implements the tagged-map message envelope used on both
// the device and client WebSocket connections, along with the two wire
// formats the relay understands: MessagePack (devices) and JSON (clients
// and legacy devices).
package relaymsg

import (
	"bytes"
	"io"

	"github.com/ugorji/go/codec"
)

// Format identifies a wire encoding for a Message.
type Format int

const (
	// Msgpack is the binary encoding devices use.
	Msgpack Format = iota

	// JSON is the text encoding clients use, and the legacy encoding some
	// devices still send.
	JSON
)

var (
	msgpackHandle = codec.MsgpackHandle{WriteExt: true}
	jsonHandle    codec.JsonHandle
)

func (f Format) handle() codec.Handle {
	switch f {
	case JSON:
		return &jsonHandle
	default:
		return &msgpackHandle
	}
}

// Encoder encodes Messages onto an underlying writer or byte slice.
type Encoder struct {
	enc *codec.Encoder
}

// NewEncoder returns an Encoder that writes to output using the given Format.
func NewEncoder(output io.Writer, f Format) *Encoder {
	return &Encoder{enc: codec.NewEncoder(output, f.handle())}
}

// NewEncoderBytes returns an Encoder that appends encoded bytes to *output.
func NewEncoderBytes(output *[]byte, f Format) *Encoder {
	return &Encoder{enc: codec.NewEncoderBytes(output, f.handle())}
}

func (e *Encoder) Encode(m *Message) error {
	return e.enc.Encode(m.fields)
}

// Decoder decodes Messages from an underlying byte slice. A single Decoder
// may be used to decode more than one Message in sequence from the same
// byte slice, which is how multi-packed MessagePack frames are handled.
type Decoder struct {
	dec *codec.Decoder
}

// NewDecoderBytes returns a Decoder reading from data using the given Format.
func NewDecoderBytes(data []byte, f Format) *Decoder {
	return &Decoder{dec: codec.NewDecoderBytes(data, f.handle())}
}

// Decode reads the next Message from the Decoder. It returns io.EOF when no
// further messages remain in the underlying byte slice.
func (d *Decoder) Decode(m *Message) error {
	fields := make(map[string]interface{})
	if err := d.dec.Decode(&fields); err != nil {
		return err
	}

	m.fields = fields
	return nil
}

// DecodeAll decodes every Message packed into data under the given format.
// Devices may pack multiple MessagePack-encoded messages into a single
// frame; this streams them out in order. A non-nil, non-EOF error from an
// individual Decode call is surfaced to the caller, who is expected to log
// and drop the frame per the relay's "unparseable frames are dropped"
// policy -- DecodeAll itself never swallows an error silently.
func DecodeAll(data []byte, f Format) ([]*Message, error) {
	dec := NewDecoderBytes(data, f)

	var messages []*Message
	for {
		m := new(Message)
		err := dec.Decode(m)
		if err == io.EOF {
			break
		} else if err != nil {
			return messages, err
		}

		messages = append(messages, m)
	}

	return messages, nil
}

// DecodeMsgpackFrame implements the Device Relay's frame-decoding policy: it
// first attempts a streaming multi-decode (the common case, since devices
// may pack several messages per frame), and falls back to a single-message
// decode if the multi-decode fails outright. "Extra bytes"-style trailing
// errors from the single decode are expected whenever more than one message
// was present, and are not reported as failures when at least one message
// was recovered from the multi-decode attempt.
func DecodeMsgpackFrame(data []byte) ([]*Message, error) {
	if messages, err := DecodeAll(data, Msgpack); err == nil && len(messages) > 0 {
		return messages, nil
	}

	m := new(Message)
	dec := NewDecoderBytes(data, Msgpack)
	if err := dec.Decode(m); err != nil {
		return nil, err
	}

	return []*Message{m}, nil
}

// DecodeJSONFrame decodes a single UTF-8 JSON object frame, the legacy
// device format and the sole client format.
func DecodeJSONFrame(data []byte) (*Message, error) {
	m := new(Message)
	dec := NewDecoderBytes(bytes.TrimSpace(data), JSON)
	if err := dec.Decode(m); err != nil {
		return nil, err
	}

	return m, nil
}

// EncodeJSON is a convenience function that encodes a Message as a single
// JSON object, used for the relay's device and client send paths.
func EncodeJSON(m *Message) ([]byte, error) {
	var buf []byte
	enc := NewEncoderBytes(&buf, JSON)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return buf, nil
}
