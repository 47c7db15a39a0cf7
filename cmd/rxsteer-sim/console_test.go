package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/core/yamlflag"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/ethport"
)

var makeAR = testenv.MakeAR

func newTestConsole(t testing.TB, doc string) (c *console, out *bytes.Buffer) {
	_, require := makeAR(t)
	var cfg simConfig
	require.NoError(yamlflag.Decode([]byte(doc), configSchema, &cfg))

	out = &bytes.Buffer{}
	c, e := newConsole(cfg, out)
	require.NoError(e)
	t.Cleanup(func() { c.Close() })
	return c, out
}

func TestConfigSchema(t *testing.T) {
	assert, _ := makeAR(t)
	var cfg simConfig
	assert.NoError(yamlflag.Decode([]byte(`
device:
  hwChecksum: true
pool:
  capacity: 4095
port:
  mac: "02:00:00:00:00:01"
  rxQueues: 4
descriptors: 64
`), configSchema, &cfg))
	assert.Equal(4, cfg.Port.RxQueues)
	assert.Equal(macaddr.MustParse("02:00:00:00:00:01"), cfg.Port.MAC)

	assert.Error(yamlflag.Decode([]byte("descriptors: 6"), configSchema, &cfg))
	assert.Error(yamlflag.Decode([]byte("port: { rxQueues: 2048 }"), configSchema, &cfg))
	assert.Error(yamlflag.Decode([]byte("port: { mac: xyz }"), configSchema, &cfg))
	assert.Error(yamlflag.Decode([]byte("unknown: 1"), configSchema, &cfg))
}

func TestConsole(t *testing.T) {
	assert, require := makeAR(t)
	c, out := newTestConsole(t, "port: { mac: \"02:00:00:00:00:01\", rxQueues: 2 }\ndescriptors: 16")

	exec := func(line string) error {
		out.Reset()
		quit, e := c.Exec(line)
		assert.False(quit)
		return e
	}
	injectRxq := func(line string) int {
		require.NoError(exec(line))
		var res injectResult
		require.NoError(json.Unmarshal(out.Bytes(), &res))
		assert.Equal(res.RxQueue >= 0, res.Delivered)
		return res.RxQueue
	}

	assert.NoError(exec(""))
	assert.NoError(exec("# comment"))
	assert.Error(exec("bogus"))
	assert.ErrorIs(exec("rxq-setup"), errUsage)
	assert.ErrorIs(exec("rxq-setup x"), errUsage)
	assert.ErrorIs(exec("promisc maybe"), errUsage)

	assert.ErrorIs(exec("start"), pmd.ErrInvalidArgument)
	require.NoError(exec("rxq-setup 0"))
	require.NoError(exec("rxq-setup 1 32"))
	require.NoError(exec("start"))

	assert.GreaterOrEqual(injectRxq("inject 02:00:00:00:00:01 proto=tcp4 sport=5000"), 0)
	assert.Equal(-1, injectRxq("inject 02:00:00:00:00:99 proto=udp4"))
	assert.Equal(-1, injectRxq("inject 01:00:5E:00:00:01"))

	require.NoError(exec("promisc on"))
	assert.GreaterOrEqual(injectRxq("inject 02:00:00:00:00:99 proto=udp4"), 0)
	require.NoError(exec("promisc off"))
	require.NoError(exec("allmulti on"))
	assert.GreaterOrEqual(injectRxq("inject 01:00:5E:00:00:01"), 0)

	assert.ErrorIs(exec("mac-add 1 02:00:00:00:00:01"), pmd.ErrAddressConflict)
	require.NoError(exec("mac-add 1 02:00:00:00:00:99"))
	require.NoError(exec("vlan 7 on"))
	assert.Equal(-1, injectRxq("inject 02:00:00:00:00:99"))
	assert.GreaterOrEqual(injectRxq("inject 02:00:00:00:00:99 vlan=7"), 0)
	require.NoError(exec("mac-remove 1"))
	assert.Equal(-1, injectRxq("inject 02:00:00:00:00:99 vlan=7"))

	require.NoError(exec("rxmode jumbo maxlen=9000"))
	assert.ErrorIs(exec("rxmode turbo"), errUsage)

	require.NoError(exec("flows"))
	assert.NotEmpty(out.String())

	require.NoError(exec("show"))
	var info ethport.Info
	require.NoError(json.Unmarshal(out.Bytes(), &info))
	assert.True(info.Started)
	assert.True(info.AllMulticast)
	assert.Equal([]int{7}, info.VLANs)
	require.Len(info.RxQueues, 2)
	assert.Equal("scattered", info.RxQueues[0].Mode)

	require.NoError(exec("stop"))
	assert.ErrorIs(exec("rxq-release 5"), pmd.ErrInvalidArgument)
	require.NoError(exec("rxq-release 1"))

	quit, e := c.Exec("exit")
	assert.NoError(e)
	assert.True(quit)
}

func TestRunLines(t *testing.T) {
	assert, _ := makeAR(t)
	sim, _ = newTestConsole(t, "port: { rxQueues: 1 }\ndescriptors: 8")
	defer func() { sim = nil }()

	quit, e := runLines(strings.NewReader("rxq-setup-all\nstart\nexit\nstop\n"))
	assert.NoError(e)
	assert.True(quit)
	assert.True(sim.port.IsStarted())

	_, e = runLines(strings.NewReader("stop\n\nstop\n"))
	assert.ErrorIs(e, pmd.ErrAlreadyInactive)
	assert.Contains(e.Error(), "3: ")
}
