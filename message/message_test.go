package message_test

import (
	"bytes"
	"testing"

	"github.com/riverforge/flowpipe/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlMessage_CanonicalName(t *testing.T) {
	assert.Equal(t, `pipe::ControlMessage`, message.ControlMessage{}.CanonicalName())
	assert.Equal(t, message.ControlMessageName, message.ControlMessage{}.CanonicalName())
}

func TestControlMessage_ZeroValueIsNormal(t *testing.T) {
	var m message.ControlMessage
	assert.Equal(t, message.ControlNormal, m.Type)
	assert.Equal(t, `NORMAL`, m.Type.String())
}

func TestControlMessage_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := message.ControlMessage{Type: message.ControlShutdown}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), `SHUTDOWN`)
}

func TestInterrupt_CanonicalName(t *testing.T) {
	assert.Equal(t, `pipe::Interrupt`, message.Interrupt{}.CanonicalName())
	assert.Equal(t, message.InterruptName, message.Interrupt{}.CanonicalName())
}

func TestInterrupt_ZeroValueIsFinished(t *testing.T) {
	var m message.Interrupt
	assert.Equal(t, message.InterruptFinished, m.Type)
	assert.Equal(t, `FINISHED`, m.Type.String())
}

func TestInterrupt_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := message.Interrupt{Type: message.InterruptBreakPoint}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), `BREAK_POINT`)
}

func TestControlType_StringUnknown(t *testing.T) {
	assert.Equal(t, `ControlType(7)`, message.ControlType(7).String())
}

func TestInterruptType_StringUnknown(t *testing.T) {
	assert.Equal(t, `InterruptType(7)`, message.InterruptType(7).String())
}
