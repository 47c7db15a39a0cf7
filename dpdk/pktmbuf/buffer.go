package pktmbuf

import (
	"github.com/pkg/math"
)

// Buffer is a packet buffer segment.
//
// Its address and length are fixed.
// The usable area is a view starting after the headroom, which is mutable.
type Buffer struct {
	pool    *Pool
	addr    uintptr
	bufLen  int
	dataOff int
	dataLen int
	free    bool
}

// Pool returns the pool that owns this buffer.
func (b *Buffer) Pool() *Pool {
	return b.pool
}

// Addr returns the start address of the buffer.
func (b *Buffer) Addr() uintptr {
	return b.addr
}

// BufLen returns the total buffer length, including headroom.
func (b *Buffer) BufLen() int {
	return b.bufLen
}

// Headroom returns the space reserved before the data.
func (b *Buffer) Headroom() int {
	return b.dataOff
}

// SetHeadroom changes the space reserved before the data.
// The buffer must be empty.
func (b *Buffer) SetHeadroom(n int) {
	if n < 0 || n > b.bufLen || b.dataLen != 0 {
		logger.Panic("invalid headroom")
	}
	b.dataOff = n
}

// DataAddr returns the start address of the usable area.
func (b *Buffer) DataAddr() uintptr {
	return b.addr + uintptr(b.dataOff)
}

// Len returns the data length.
func (b *Buffer) Len() int {
	return b.dataLen
}

// Tailroom returns the space available after the data.
func (b *Buffer) Tailroom() int {
	return b.bufLen - b.dataOff - b.dataLen
}

// Reset empties the buffer and restores the default headroom.
func (b *Buffer) Reset() {
	b.dataOff = math.MinInt(DefaultHeadroom, b.bufLen)
	b.dataLen = 0
}

// IsFree reports whether the buffer is currently in the pool.
func (b *Buffer) IsFree() bool {
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	return b.free
}
