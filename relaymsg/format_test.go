package relaymsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsgpackRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	original := NewMessage(TypeStatus)
	original.SetDeviceID("BRW-01ABCDEF")
	original.Set("temperature", 93.5)

	var buf []byte
	enc := NewEncoderBytes(&buf, Msgpack)
	require.NoError(enc.Encode(original))

	decoded := new(Message)
	dec := NewDecoderBytes(buf, Msgpack)
	require.NoError(dec.Decode(decoded))

	assert.Equal(TypeStatus, decoded.Type())
	assert.Equal("BRW-01ABCDEF", decoded.DeviceID())
}

func TestDecodeMsgpackFrameMultiMessage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var buf []byte
	enc := NewEncoderBytes(&buf, Msgpack)
	require.NoError(enc.Encode(NewMessage(TypeStatus)))
	require.NoError(enc.Encode(NewMessage(TypeESPStatus)))
	require.NoError(enc.Encode(NewMessage(TypePicoStatus)))

	messages, err := DecodeMsgpackFrame(buf)
	require.NoError(err)
	require.Len(messages, 3)
	assert.Equal(TypeStatus, messages[0].Type())
	assert.Equal(TypeESPStatus, messages[1].Type())
	assert.Equal(TypePicoStatus, messages[2].Type())
}

func TestDecodeMsgpackFrameSingleMessage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var buf []byte
	enc := NewEncoderBytes(&buf, Msgpack)
	require.NoError(enc.Encode(NewMessage(TypeDeviceInfo)))

	messages, err := DecodeMsgpackFrame(buf)
	require.NoError(err)
	require.Len(messages, 1)
	assert.Equal(TypeDeviceInfo, messages[0].Type())
}

func TestDecodeJSONFrame(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data, err := EncodeJSON(NewMessage(TypePing))
	require.NoError(err)

	decoded, err := DecodeJSONFrame(data)
	require.NoError(err)
	assert.Equal(TypePing, decoded.Type())
}

func TestStampTimestampIfAbsent(t *testing.T) {
	assert := assert.New(t)

	m := NewMessage(TypeStatus)
	_, present := m.Timestamp()
	assert.False(present)

	now := time.Now()
	m.StampTimestampIfAbsent(now)
	ts, present := m.Timestamp()
	assert.True(present)
	assert.Equal(now.UnixMilli(), ts)

	// a second stamp with a different time must not overwrite the first
	m.StampTimestampIfAbsent(now.Add(1))
	ts2, _ := m.Timestamp()
	assert.Equal(ts, ts2)
}
