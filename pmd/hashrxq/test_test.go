package hashrxq_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd"
)

var makeAR = testenv.MakeAR

type fakeFilter struct {
	macs  [pmd.MaxMACAddresses]*macaddr.EtherAddr
	vlans []int
}

func (f *fakeFilter) MACAddr(index int) (addr macaddr.EtherAddr, configured bool) {
	if a := f.macs[index]; a != nil {
		return *a, true
	}
	return addr, false
}

func (f *fakeFilter) VLANs() []int {
	return f.vlans
}

func (f *fakeFilter) set(index int, addr string) {
	a := macaddr.MustParse(addr)
	f.macs[index] = &a
}

func makeWQs(t testing.TB, dev *simverbs.Device, n int) (wqs []verbs.WQ) {
	_, require := makeAR(t)
	cq, e := dev.CreateCQ(64)
	require.NoError(e)
	for i := 0; i < n; i++ {
		wq, e := dev.CreateWQ(verbs.WQConfig{CQ: cq, MaxRecvWR: 4, MaxRecvSGE: 1})
		require.NoError(e)
		wqs = append(wqs, wq)
	}
	return wqs
}
