package rxfilter_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
	"github.com/usnistgov/rxsteer/pmd/rxfilter"
)

var makeAR = testenv.MakeAR

type fixture struct {
	dev   *simverbs.Device
	table *rxfilter.Table
	group *hashrxq.Group
}

func newFixture(t testing.TB, nQueues int, vf bool) (f *fixture) {
	_, require := makeAR(t)
	f = &fixture{
		dev:   simverbs.New(simverbs.Config{}),
		table: &rxfilter.Table{},
	}

	cq, e := f.dev.CreateCQ(64)
	require.NoError(e)
	var wqs []verbs.WQ
	for i := 0; i < nQueues; i++ {
		wq, e := f.dev.CreateWQ(verbs.WQConfig{CQ: cq, MaxRecvWR: 4, MaxRecvSGE: 1})
		require.NoError(e)
		wqs = append(wqs, wq)
	}

	f.group, e = hashrxq.New(f.dev, f.table, hashrxq.Config{WQs: wqs, VF: vf})
	require.NoError(e)
	return f
}

// rules returns per hash queue rule counts.
func (f *fixture) rules() (list []int) {
	for _, q := range f.group.Queues() {
		list = append(list, q.RuleCount())
	}
	return list
}

func repeat(n, count int) (list []int) {
	for i := 0; i < count; i++ {
		list = append(list, n)
	}
	return list
}
