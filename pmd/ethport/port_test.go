package ethport_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/ethport"
	"github.com/usnistgov/rxsteer/pmd/flow"
	"github.com/usnistgov/rxsteer/pmd/rxq"
	"golang.org/x/sys/unix"
)

func TestConfigInvalid(t *testing.T) {
	assert, _ := makeAR(t)
	dev := simverbs.New(simverbs.Config{})

	_, e := ethport.New(dev, ethport.Config{RxQueues: ethport.MaxRxQueues + 1})
	assert.ErrorIs(e, pmd.ErrInvalidArgument)
	_, e = ethport.New(dev, ethport.Config{MAC: otherMAC, RSSKey: "0102"})
	assert.ErrorIs(e, pmd.ErrInvalidArgument)
	_, e = ethport.New(dev, ethport.Config{MAC: otherMAC, RSSKey: "XY"})
	assert.ErrorIs(e, pmd.ErrInvalidArgument)

	port, e := ethport.New(dev, ethport.Config{})
	assert.NoError(e)
	cfg := port.Config()
	assert.Equal(ethport.DefaultRxQueues, cfg.RxQueues)
	assert.True(cfg.MAC.IsUnicast())
}

func TestRxQueueSetup(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 2})

	assert.ErrorIs(f.port.RxQueueSetup(2, rxq.Config{Descriptors: 16, Pool: f.pool}), pmd.ErrInvalidArgument)
	assert.ErrorIs(f.port.RxQueueSetup(0, rxq.Config{Descriptors: 6, Pool: f.pool}), pmd.ErrInvalidDescriptorCount)
	assert.Nil(f.port.RxQueue(0))
	assert.ErrorIs(f.port.Start(), pmd.ErrInvalidArgument)

	require.NoError(f.port.RxQueueSetup(0, rxq.Config{Descriptors: 16, Pool: f.pool}))
	q0 := f.port.RxQueue(0)
	require.NotNil(q0)
	assert.Equal(16, f.pool.CountInUse())

	require.NoError(f.port.RxQueueSetup(0, rxq.Config{Descriptors: 32, Pool: f.pool}))
	assert.Equal(rxq.StateReleased, q0.State())
	assert.Equal(32, f.pool.CountInUse())

	assert.NoError(f.port.RxQueueRelease(0))
	assert.NoError(f.port.RxQueueRelease(0))
	assert.Nil(f.port.RxQueue(0))
	assert.Zero(f.pool.CountInUse())
	assert.Zero(f.dev.Counts().Total())
}

func TestStartStop(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 4})
	f.setupAll(t)

	assert.ErrorIs(f.port.Stop(), pmd.ErrAlreadyInactive)
	require.NoError(f.port.Start())
	assert.True(f.port.IsStarted())
	assert.ErrorIs(f.port.Start(), pmd.ErrAlreadyActive)
	assert.ErrorIs(f.port.RxQueueSetup(1, rxq.Config{Descriptors: 16, Pool: f.pool}), pmd.ErrAlreadyActive)
	assert.ErrorIs(f.port.RxQueueRelease(1), pmd.ErrAlreadyActive)

	info := f.port.Info()
	assert.True(info.Started)
	require.Len(info.MACs, 2)
	assert.Equal(0, info.MACs[0].Index)
	assert.Equal(portMAC, info.MACs[0].Addr)
	assert.Equal(pmd.MaxMACAddresses-1, info.MACs[1].Index)
	require.Len(info.HashQueues, len(flow.HashTypes))
	for _, hq := range info.HashQueues {
		assert.Equal(2, hq.Rules, "%s", hq.HashType)
	}
	require.Len(info.RxQueues, 4)
	assert.Equal("ready", info.RxQueues[3].State)

	wqs := map[verbs.WQ]bool{}
	for i := 0; i < 4; i++ {
		wqs[f.port.RxQueue(i).WQ()] = true
	}
	dl, ok := f.steer(t, simverbs.FrameSpec{Dst: portMAC, VLAN: -1, Proto: "tcp4"})
	require.True(ok)
	assert.True(wqs[dl.WQ])
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: -1, Proto: "tcp4"})
	assert.False(ok)

	require.NoError(f.port.Stop())
	assert.False(f.port.IsStarted())
	cnt := f.dev.Counts()
	assert.Zero(cnt.Flows)
	assert.Zero(cnt.QPs)
	assert.Zero(cnt.IndTables)
	assert.Equal(4, cnt.WQs)
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: portMAC, VLAN: -1, Proto: "tcp4"})
	assert.False(ok)

	require.NoError(f.port.Close())
	assert.NoError(f.port.Close())
	assert.Zero(f.dev.Counts().Total())
	assert.Zero(f.pool.CountInUse())
	assert.ErrorIs(f.port.Start(), pmd.ErrAlreadyInactive)
}

func TestStartRollback(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 2})
	f.setupAll(t)
	before := f.dev.Counts()

	faults := []struct {
		op    string
		n     int
		errno unix.Errno
	}{
		{"CreateIndirectionTable", 1, unix.ENOMEM},
		{"CreateIndirectionTable", 2, unix.ENOMEM},
		{"CreateHashQP", 1, unix.ENOMEM},
		{"CreateHashQP", 3, unix.ENOMEM},
		{"CreateHashQP", 7, unix.ENOMEM},
		{"CreateFlow", 1, unix.ENOSPC},
		{"CreateFlow", 9, unix.ENOSPC},
	}
	for _, fault := range faults {
		f.dev.InjectFault(fault.op, fault.n, fault.errno)
		e := f.port.Start()
		assert.ErrorIs(e, pmd.ErrResourceExhausted, "%s %d", fault.op, fault.n)
		assert.ErrorIs(e, fault.errno, "%s %d", fault.op, fault.n)
		assert.False(f.port.IsStarted(), "%s %d", fault.op, fault.n)
		assert.Equal(before, f.dev.Counts(), "%s %d", fault.op, fault.n)
		f.dev.ClearFaults()
	}

	require.NoError(f.port.Start())
	assert.NoError(f.port.Close())
}

func TestModesPersist(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 2, AllMulticast: true})
	f.setupAll(t)
	defer f.port.Close()

	require.NoError(f.port.SetPromiscuous(true))
	require.NoError(f.port.Start())
	info := f.port.Info()
	assert.True(info.Promiscuous)
	assert.True(info.AllMulticast)
	_, ok := f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: -1, Proto: "udp6"})
	assert.True(ok)

	require.NoError(f.port.SetPromiscuous(false))
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: -1, Proto: "udp6"})
	assert.False(ok)
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: portMAC, VLAN: -1, Proto: "udp6"})
	assert.True(ok)

	require.NoError(f.port.Stop())
	require.NoError(f.port.Start())
	info = f.port.Info()
	assert.False(info.Promiscuous)
	assert.True(info.AllMulticast)
}

func TestMACAndVLAN(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 1})
	f.setupAll(t)
	defer f.port.Close()
	require.NoError(f.port.Start())

	assert.ErrorIs(f.port.MACAddrAdd(1, portMAC), pmd.ErrAddressConflict)
	require.NoError(f.port.MACAddrAdd(1, otherMAC))
	_, ok := f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: -1})
	assert.True(ok)

	require.NoError(f.port.VLANFilterSet(100, true))
	assert.Equal([]int{100}, f.port.Info().VLANs)
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: -1})
	assert.False(ok)
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: 100})
	assert.True(ok)

	f.port.MACAddrRemove(1)
	_, ok = f.steer(t, simverbs.FrameSpec{Dst: otherMAC, VLAN: 100})
	assert.False(ok)
}

func TestSetRxMode(t *testing.T) {
	assert, require := makeAR(t)
	f := newFixture(t, ethport.Config{RxQueues: 2})
	f.setupAll(t)
	defer f.port.Close()
	require.NoError(f.port.Start())

	require.NoError(f.port.SetRxMode(rxq.RxMode{JumboFrame: true, MaxRxPktLen: 9000}))
	info := f.port.Info()
	assert.True(info.RxMode.JumboFrame)
	for _, qi := range info.RxQueues {
		assert.Equal("scattered", qi.Mode)
		assert.Equal(16, qi.Buffers)
		assert.Equal(16/pmd.ScatterSegments, qi.Descriptors)
	}
	assert.Equal(32, f.pool.CountInUse())

	_, ok := f.steer(t, simverbs.FrameSpec{Dst: portMAC, VLAN: -1, Proto: "udp4"})
	assert.True(ok)
}
