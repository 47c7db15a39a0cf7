// Package rxring manages receive descriptor rings: the buffers attached to a receive work queue.
package rxring

import (
	"errors"
	"fmt"

	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"go.uber.org/zap"
)

var logger = logging.New("rxring")

// Ring is a receive descriptor ring.
//
// Each descriptor holds one buffer in Single mode, or pmd.ScatterSegments buffers in Scattered mode.
// The first segment of a descriptor keeps the buffer headroom; subsequent segments have no headroom.
type Ring struct {
	layout Layout
	head   int
}

// New allocates a ring of n descriptors from a buffer pool.
// If the pool is exhausted, every buffer already attached is freed and pmd.ErrOutOfBuffers is returned.
func New(n int, mode Mode, pool *pktmbuf.Pool) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: descriptor count %d", pmd.ErrInvalidArgument, n)
	}

	r := &Ring{layout: newLayout(mode, n)}
	e := r.fill(func() (*pktmbuf.Buffer, error) {
		b, e := pool.Alloc()
		if errors.Is(e, pktmbuf.ErrEmpty) {
			return nil, pmd.ErrOutOfBuffers
		}
		return b, e
	})
	if e != nil {
		logger.Error("cannot allocate buffers",
			zap.Int("descriptors", n),
			zap.Stringer("mode", mode),
			zap.Int("available", pool.CountAvailable()),
			zap.Error(e),
		)
		r.Close()
		return nil, e
	}
	return r, nil
}

// Rebuild creates a ring in another mode, reusing every buffer of old.
//
// The total number of buffers is preserved; the number of descriptors is adjusted to the new mode.
// It fails with pmd.ErrInvalidArgument, leaving old unchanged, if the buffers cannot be evenly divided.
// On success, old is detached from its buffers and may be closed.
func Rebuild(old *Ring, mode Mode) (*Ring, error) {
	bufs := old.Buffers()
	segs := mode.Segments()
	if len(bufs) == 0 || len(bufs)%segs != 0 {
		return nil, fmt.Errorf("%w: %d buffers cannot form %s descriptors", pmd.ErrInvalidArgument, len(bufs), mode)
	}

	r := &Ring{layout: newLayout(mode, len(bufs)/segs)}
	e := r.fill(func() (b *pktmbuf.Buffer, e error) {
		if len(bufs) == 0 {
			return nil, pmd.ErrOutOfBuffers
		}
		b, bufs = bufs[0], bufs[1:]
		b.Reset()
		return b, nil
	})
	pmd.Require(e == nil && len(bufs) == 0, "recycled buffers must fill the rebuilt ring exactly")

	old.layout = nil
	old.head = 0
	return r, nil
}

func (r *Ring) fill(take func() (*pktmbuf.Buffer, error)) error {
	for i, n := 0, r.layout.Len(); i < n; i++ {
		segs := r.layout.Desc(i)
		for j := range segs {
			b, e := take()
			if e != nil {
				return e
			}
			if j > 0 {
				b.SetHeadroom(0)
			}
			segs[j] = b
		}
	}
	return nil
}

// Layout returns descriptor storage, or nil if the ring is closed or detached.
func (r *Ring) Layout() Layout {
	return r.layout
}

// Mode returns the descriptor layout mode.
func (r *Ring) Mode() Mode {
	if r.layout == nil {
		return Single
	}
	return r.layout.Mode()
}

// Len returns the number of descriptors.
func (r *Ring) Len() int {
	if r.layout == nil {
		return 0
	}
	return r.layout.Len()
}

// Head returns the index of the next descriptor to be consumed.
func (r *Ring) Head() int {
	return r.head
}

// CountBuffers returns the number of attached buffers.
func (r *Ring) CountBuffers() int {
	return r.Len() * r.Mode().Segments()
}

// Buffers returns attached buffers in descriptor order.
func (r *Ring) Buffers() (list []*pktmbuf.Buffer) {
	for i, n := 0, r.Len(); i < n; i++ {
		for _, b := range r.layout.Desc(i) {
			if b != nil {
				list = append(list, b)
			}
		}
	}
	return list
}

// SGEs returns the scatter/gather list of a descriptor.
func (r *Ring) SGEs(i int, lkey uint32) (sges []verbs.SGE) {
	for _, b := range r.layout.Desc(i) {
		sges = append(sges, verbs.SGE{
			Addr:   b.DataAddr(),
			Length: uint32(b.Tailroom()),
			LKey:   lkey,
		})
	}
	return sges
}

// Post submits every descriptor in order, stopping at the first error.
func (r *Ring) Post(lkey uint32, post func(sges []verbs.SGE) error) error {
	for i, n := 0, r.Len(); i < n; i++ {
		if e := post(r.SGEs(i, lkey)); e != nil {
			return fmt.Errorf("descriptor %d: %w", i, e)
		}
	}
	return nil
}

// Close returns every attached buffer to its pool.
// It is safe to call Close more than once.
func (r *Ring) Close() error {
	for _, b := range r.Buffers() {
		b.Pool().Free(b)
	}
	r.layout = nil
	r.head = 0
	return nil
}
