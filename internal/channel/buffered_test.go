package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered_SendReceive(t *testing.T) {
	b := NewBuffered[int](2)
	b.Send(1)
	b.Send(2)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, <-b.Receive())
	assert.Equal(t, 2, <-b.Receive())
	assert.Equal(t, 0, b.Len())
}

func TestBuffered_TrySend_DropsWhenFull(t *testing.T) {
	b := NewBuffered[string](1)

	assert.True(t, b.TrySend("first"))
	assert.False(t, b.TrySend("second"), "full buffer should drop without blocking")

	assert.Equal(t, "first", <-b.Receive())
	assert.True(t, b.TrySend("third"))
}

func TestBuffered_Close(t *testing.T) {
	b := NewBuffered[int](1)
	b.Send(7)
	b.Close()

	v, ok := <-b.Receive()
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = <-b.Receive()
	assert.False(t, ok)
}
