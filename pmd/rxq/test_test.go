package rxq_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
)

var makeAR = testenv.MakeAR

func newPool(t testing.TB, capacity int) *pktmbuf.Pool {
	_, require := makeAR(t)
	pool, e := pktmbuf.NewPool(pktmbuf.PoolConfig{Capacity: capacity, Dataroom: 2176})
	require.NoError(e)
	return pool
}
