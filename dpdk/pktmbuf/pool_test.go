package pktmbuf_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
)

func TestPool(t *testing.T) {
	assert, require := makeAR(t)

	pool, e := pktmbuf.NewPool(pktmbuf.PoolConfig{Capacity: 100, Dataroom: 1000})
	require.NoError(e)
	assert.Equal(100, pool.Capacity())
	assert.Equal(1000, pool.ElementSize())
	addr, length := pool.Region()
	assert.NotZero(addr)
	assert.Equal(100000, length)

	var bufs []*pktmbuf.Buffer
	for i := 0; i < 100; i++ {
		b, e := pool.Alloc()
		require.NoError(e)
		assert.Equal(1000, b.BufLen())
		assert.Equal(pktmbuf.DefaultHeadroom, b.Headroom())
		assert.Equal(1000-pktmbuf.DefaultHeadroom, b.Tailroom())
		assert.GreaterOrEqual(uint64(b.Addr()), uint64(addr))
		assert.LessOrEqual(uint64(b.Addr())+uint64(b.BufLen()), uint64(addr)+uint64(length))
		bufs = append(bufs, b)
	}
	assert.Equal(0, pool.CountAvailable())
	assert.Equal(100, pool.CountInUse())

	_, e = pool.Alloc()
	assert.ErrorIs(e, pktmbuf.ErrEmpty)

	for _, b := range bufs {
		pool.Free(b)
	}
	assert.Equal(100, pool.CountAvailable())
	assert.True(bufs[0].IsFree())
	assert.Panics(func() { pool.Free(bufs[0]) })

	other, _ := pktmbuf.NewPool(pktmbuf.PoolConfig{})
	b, _ := other.Alloc()
	assert.Panics(func() { pool.Free(b) })
}

func TestPoolDefaults(t *testing.T) {
	assert, require := makeAR(t)

	pool, e := pktmbuf.NewPool(pktmbuf.PoolConfig{Capacity: 1})
	require.NoError(e)
	assert.Equal(pktmbuf.MinCapacity, pool.Capacity())
	assert.Equal(pktmbuf.DefaultDataroom, pool.ElementSize())

	a1, _ := pool.Region()
	other, _ := pktmbuf.NewPool(pktmbuf.PoolConfig{})
	a2, _ := other.Region()
	assert.NotEqual(a1, a2)

	_, e = pktmbuf.NewPool(pktmbuf.PoolConfig{Dataroom: 70000})
	assert.Error(e)
}

func TestBufferHeadroom(t *testing.T) {
	assert, require := makeAR(t)

	pool, e := pktmbuf.NewPool(pktmbuf.PoolConfig{Dataroom: 2176})
	require.NoError(e)
	b, e := pool.Alloc()
	require.NoError(e)

	assert.Equal(b.Addr()+pktmbuf.DefaultHeadroom, b.DataAddr())
	b.SetHeadroom(0)
	assert.Equal(b.Addr(), b.DataAddr())
	assert.Equal(2176, b.Tailroom())
	assert.Panics(func() { b.SetHeadroom(3000) })

	b.Reset()
	assert.Equal(pktmbuf.DefaultHeadroom, b.Headroom())
	pool.Free(b)

	b, e = pool.Alloc()
	require.NoError(e)
	assert.Equal(pktmbuf.DefaultHeadroom, b.Headroom())
}
