// Package pktmbuf provides a packet buffer pool whose elements live in one contiguous region,
// so that the region can be registered with the NIC as a single memory region.
package pktmbuf

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/math"
	"github.com/usnistgov/rxsteer/core/logging"
)

var logger = logging.New("pktmbuf")

// Limits and defaults.
const (
	// DefaultHeadroom is the headroom reserved at the front of each buffer.
	DefaultHeadroom = 128
	// DefaultDataroom is the default buffer length, including headroom.
	DefaultDataroom = 2048 + DefaultHeadroom
	// DefaultCapacity is the default number of buffers in a pool.
	DefaultCapacity = 4095
	// MinCapacity is the minimum number of buffers in a pool.
	MinCapacity = 63
)

// ErrEmpty indicates the pool has no available buffer.
var ErrEmpty = errors.New("mempool is empty")

// regionStride separates the synthetic address ranges of different pools.
const regionStride = 1 << 40

var lastRegion uint64

// PoolConfig contains Pool configuration.
type PoolConfig struct {
	// Capacity is the number of buffers.
	Capacity int `json:"capacity,omitempty"`
	// Dataroom is the length of each buffer, including headroom.
	Dataroom int `json:"dataroom,omitempty"`
	// Socket is the NUMA socket where the region is placed; -1 means any.
	Socket int `json:"socket,omitempty"`
}

func (cfg *PoolConfig) applyDefaults() {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	cfg.Capacity = math.MaxInt(cfg.Capacity, MinCapacity)
	if cfg.Dataroom <= 0 {
		cfg.Dataroom = DefaultDataroom
	}
	cfg.Dataroom = math.MaxInt(cfg.Dataroom, DefaultHeadroom)
}

// Pool is a fixed-capacity pool of packet buffers.
// It is safe for concurrent use.
type Pool struct {
	cfg  PoolConfig
	base uintptr

	mu    sync.Mutex
	elts  []Buffer
	avail []*Buffer
}

// NewPool creates a Pool.
func NewPool(cfg PoolConfig) (pool *Pool, e error) {
	cfg.applyDefaults()
	if cfg.Dataroom > 0xFFFF {
		return nil, fmt.Errorf("dataroom %d exceeds 65535", cfg.Dataroom)
	}

	pool = &Pool{
		cfg:   cfg,
		base:  uintptr(atomic.AddUint64(&lastRegion, 1) * regionStride),
		elts:  make([]Buffer, cfg.Capacity),
		avail: make([]*Buffer, cfg.Capacity),
	}
	for i := range pool.elts {
		b := &pool.elts[i]
		b.pool = pool
		b.addr = pool.base + uintptr(i*cfg.Dataroom)
		b.bufLen = cfg.Dataroom
		b.free = true
		pool.avail[len(pool.avail)-1-i] = b
	}
	return pool, nil
}

// Config returns the effective configuration.
func (pool *Pool) Config() PoolConfig {
	return pool.cfg
}

// ElementSize returns the length of each buffer, including headroom.
func (pool *Pool) ElementSize() int {
	return pool.cfg.Dataroom
}

// Region returns the address range covering every buffer of this pool.
func (pool *Pool) Region() (addr uintptr, length int) {
	return pool.base, pool.cfg.Capacity * pool.cfg.Dataroom
}

// Capacity returns the total number of buffers.
func (pool *Pool) Capacity() int {
	return pool.cfg.Capacity
}

// CountAvailable returns the number of available buffers.
func (pool *Pool) CountAvailable() int {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return len(pool.avail)
}

// CountInUse returns the number of allocated buffers.
func (pool *Pool) CountInUse() int {
	return pool.Capacity() - pool.CountAvailable()
}

// Alloc allocates a buffer.
// The buffer is empty and has DefaultHeadroom, or less if Dataroom is smaller.
func (pool *Pool) Alloc() (b *Buffer, e error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	n := len(pool.avail)
	if n == 0 {
		return nil, ErrEmpty
	}
	b = pool.avail[n-1]
	pool.avail = pool.avail[:n-1]
	b.free = false
	b.Reset()
	return b, nil
}

// Free returns a buffer to the pool.
// Freeing a buffer twice, or into another pool, is a programming error and panics.
func (pool *Pool) Free(b *Buffer) {
	if b.pool != pool {
		logger.Panic("buffer belongs to another pool")
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if b.free {
		logger.Panic("buffer freed twice")
	}
	b.free = true
	pool.avail = append(pool.avail, b)
}
