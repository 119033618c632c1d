package device

import (
	"testing"

	"github.com/brewbridge/relay/relaymsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) *device {
	id, err := ParseID("BRW-FEEDFACE")
	require.NoError(t, err)
	return newDevice(deviceOptions{ID: id})
}

func TestListenersOnMessage(t *testing.T) {
	assert := assert.New(t)

	l := NewListeners()
	d := newTestDevice(t)
	msg := relaymsg.NewMessage(relaymsg.TypeStatus)

	var calls int
	unsubscribe := l.OnMessage(func(actualDevice Interface, actualMessage *relaymsg.Message) {
		assert.Equal(d, actualDevice)
		assert.Equal(msg, actualMessage)
		calls++
	})

	l.notifyMessage(d, msg)
	assert.Equal(1, calls)

	unsubscribe()
	l.notifyMessage(d, msg)
	assert.Equal(1, calls)
}

func TestListenersOnConnectDisconnect(t *testing.T) {
	assert := assert.New(t)

	l := NewListeners()
	d := newTestDevice(t)

	var connectCalls, disconnectCalls int
	l.OnConnect(func(Interface) { connectCalls++ })
	l.OnDisconnect(func(Interface) { disconnectCalls++ })

	l.notifyConnect(d)
	l.notifyConnect(d)
	l.notifyDisconnect(d)

	assert.Equal(2, connectCalls)
	assert.Equal(1, disconnectCalls)
}

func TestListenersMultipleSubscribers(t *testing.T) {
	assert := assert.New(t)

	l := NewListeners()
	d := newTestDevice(t)

	var a, b int
	unsubA := l.OnMessage(func(Interface, *relaymsg.Message) { a++ })
	l.OnMessage(func(Interface, *relaymsg.Message) { b++ })

	l.notifyMessage(d, relaymsg.NewMessage(relaymsg.TypeStatus))
	unsubA()
	l.notifyMessage(d, relaymsg.NewMessage(relaymsg.TypeStatus))

	assert.Equal(1, a)
	assert.Equal(2, b)
}
