package rxring_test

import (
	"errors"
	"testing"

	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/rxring"
)

func newPool(t *testing.T, capacity int) *pktmbuf.Pool {
	_, require := makeAR(t)
	pool, e := pktmbuf.NewPool(pktmbuf.PoolConfig{Capacity: capacity, Dataroom: 2176})
	require.NoError(e)
	return pool
}

func TestSingle(t *testing.T) {
	assert, require := makeAR(t)
	pool := newPool(t, 100)

	r, e := rxring.New(16, rxring.Single, pool)
	require.NoError(e)
	assert.Equal(rxring.Single, r.Mode())
	assert.Equal(16, r.Len())
	assert.Equal(16, r.CountBuffers())
	assert.Equal(0, r.Head())
	assert.Equal(84, pool.CountAvailable())

	sges := r.SGEs(3, 0x77)
	require.Len(sges, 1)
	b := r.Buffers()[3]
	assert.Equal(b.Addr()+pktmbuf.DefaultHeadroom, sges[0].Addr)
	assert.Equal(uint32(2176-pktmbuf.DefaultHeadroom), sges[0].Length)
	assert.Equal(uint32(0x77), sges[0].LKey)

	assert.NoError(r.Close())
	assert.NoError(r.Close())
	assert.Equal(100, pool.CountAvailable())
	assert.Equal(0, r.Len())
}

func TestScattered(t *testing.T) {
	assert, require := makeAR(t)
	pool := newPool(t, 100)

	r, e := rxring.New(4, rxring.Scattered, pool)
	require.NoError(e)
	assert.Equal(4, r.Len())
	assert.Equal(16, r.CountBuffers())

	sges := r.SGEs(0, 1)
	require.Len(sges, pmd.ScatterSegments)
	assert.Equal(uint32(2176-pktmbuf.DefaultHeadroom), sges[0].Length)
	for _, sge := range sges[1:] {
		assert.Equal(uint32(2176), sge.Length)
	}
	segs := r.Layout().Desc(0)
	assert.Equal(segs[1].Addr(), sges[1].Addr)

	r.Close()
	assert.Equal(100, pool.CountAvailable())
}

func TestOutOfBuffers(t *testing.T) {
	assert, _ := makeAR(t)
	pool := newPool(t, 70)

	r, e := rxring.New(20, rxring.Scattered, pool)
	assert.Nil(r)
	assert.ErrorIs(e, pmd.ErrOutOfBuffers)
	assert.ErrorIs(e, pmd.ErrResourceExhausted)
	assert.Equal(70, pool.CountAvailable())

	_, e = rxring.New(0, rxring.Single, pool)
	assert.ErrorIs(e, pmd.ErrInvalidArgument)
}

func TestRebuild(t *testing.T) {
	assert, require := makeAR(t)
	pool := newPool(t, 100)

	old, e := rxring.New(32, rxring.Single, pool)
	require.NoError(e)
	bufs := old.Buffers()

	r, e := rxring.Rebuild(old, rxring.Scattered)
	require.NoError(e)
	assert.Equal(8, r.Len())
	assert.Equal(32, r.CountBuffers())
	assert.ElementsMatch(bufs, r.Buffers())
	assert.Equal(0, old.CountBuffers())
	assert.Equal(68, pool.CountAvailable())
	assert.NoError(old.Close())
	assert.Equal(68, pool.CountAvailable())

	for i, b := range r.Buffers() {
		if i%pmd.ScatterSegments == 0 {
			assert.Equal(pktmbuf.DefaultHeadroom, b.Headroom())
		} else {
			assert.Equal(0, b.Headroom())
		}
	}

	var back *rxring.Ring
	assert.NotPanics(func() { back, e = rxring.Rebuild(r, rxring.Single) })
	require.NoError(e)
	assert.Equal(32, back.Len())
	assert.ElementsMatch(bufs, back.Buffers())
	for _, b := range back.Buffers() {
		assert.Equal(pktmbuf.DefaultHeadroom, b.Headroom())
	}
	back.Close()
	assert.Equal(100, pool.CountAvailable())
}

func TestRebuildUneven(t *testing.T) {
	assert, require := makeAR(t)
	pool := newPool(t, 100)

	old, e := rxring.New(6, rxring.Single, pool)
	require.NoError(e)
	r, e := rxring.Rebuild(old, rxring.Scattered)
	assert.Nil(r)
	assert.ErrorIs(e, pmd.ErrInvalidArgument)
	assert.Equal(6, old.CountBuffers())
	old.Close()
	assert.Equal(100, pool.CountAvailable())
}

func TestPost(t *testing.T) {
	assert, require := makeAR(t)
	pool := newPool(t, 100)

	r, e := rxring.New(8, rxring.Scattered, pool)
	require.NoError(e)
	defer r.Close()

	var posted [][]verbs.SGE
	require.NoError(r.Post(5, func(sges []verbs.SGE) error {
		posted = append(posted, sges)
		return nil
	}))
	assert.Len(posted, 8)

	errPost := errors.New("post failed")
	n := 0
	e = r.Post(5, func(sges []verbs.SGE) error {
		if n++; n == 3 {
			return errPost
		}
		return nil
	})
	assert.ErrorIs(e, errPost)
	assert.Equal(3, n)
}
