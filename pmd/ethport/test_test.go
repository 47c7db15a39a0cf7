package ethport_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd/ethport"
	"github.com/usnistgov/rxsteer/pmd/rxq"
)

var makeAR = testenv.MakeAR

var (
	portMAC  = macaddr.MustParse("02:00:00:00:00:01")
	otherMAC = macaddr.MustParse("02:00:00:00:00:99")
)

type fixture struct {
	dev  *simverbs.Device
	pool *pktmbuf.Pool
	port *ethport.Port
}

func newFixture(t testing.TB, cfg ethport.Config) (f *fixture) {
	_, require := makeAR(t)
	f = &fixture{
		dev: simverbs.New(simverbs.Config{HwChecksum: true}),
	}

	var e error
	f.pool, e = pktmbuf.NewPool(pktmbuf.PoolConfig{Capacity: 1023})
	require.NoError(e)

	cfg.MAC = portMAC
	f.port, e = ethport.New(f.dev, cfg)
	require.NoError(e)
	return f
}

func (f *fixture) setupAll(t testing.TB) {
	_, require := makeAR(t)
	for i, n := 0, f.port.Config().RxQueues; i < n; i++ {
		require.NoError(f.port.RxQueueSetup(i, rxq.Config{Descriptors: 16, Pool: f.pool}))
	}
}

func (f *fixture) steer(t testing.TB, spec simverbs.FrameSpec) (dl simverbs.Delivery, ok bool) {
	_, require := makeAR(t)
	frame, e := simverbs.BuildFrame(spec)
	require.NoError(e)
	return f.dev.Steer(frame)
}
