package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartBuffers_GetReturnsFullLength(t *testing.T) {
	p := NewPartBuffers(1024)

	buf := p.Get()
	assert.Len(t, buf, 1024)
	assert.Equal(t, 1024, cap(buf))
}

func TestPartBuffers_PutRestoresLength(t *testing.T) {
	p := NewPartBuffers(64)

	buf := p.Get()
	p.Put(buf[:10])

	again := p.Get()
	assert.Len(t, again, 64)
}

func TestPartBuffers_DropsForeignSizes(t *testing.T) {
	p := NewPartBuffers(64)

	// A buffer of the wrong capacity is silently discarded.
	p.Put(make([]byte, 32))

	buf := p.Get()
	assert.Len(t, buf, 64)
}
