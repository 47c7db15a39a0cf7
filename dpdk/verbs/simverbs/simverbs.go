// Package simverbs implements verbs.Device in software.
//
// The emulated device tracks every hardware object, enforces object dependencies and work queue states,
// supports fault injection, and steers packets through installed flow rules.
package simverbs

import (
	"sync"

	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var logger = logging.New("simverbs")

// Config contains emulated device configuration.
type Config struct {
	MaxQueueDepth           int  `json:"maxQueueDepth,omitempty"`
	MaxSGE                  int  `json:"maxSge,omitempty"`
	MaxIndirectionTableSize int  `json:"maxIndirectionTableSize,omitempty"`
	MaxCQDepth              int  `json:"maxCqDepth,omitempty"`
	HwChecksum              bool `json:"hwChecksum,omitempty"`
	HwChecksumL2Tunnel      bool `json:"hwChecksumL2Tunnel,omitempty"`

	// MaxFlows limits the number of flow rules; zero means unlimited.
	MaxFlows int `json:"maxFlows,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 16384
	}
	if cfg.MaxSGE <= 0 {
		cfg.MaxSGE = 16
	}
	if cfg.MaxIndirectionTableSize <= 0 {
		cfg.MaxIndirectionTableSize = 512
	}
	if cfg.MaxCQDepth <= 0 {
		cfg.MaxCQDepth = 65536
	}
}

// Counts contains the number of live objects of each kind.
type Counts struct {
	Flows     int `json:"flows"`
	QPs       int `json:"qps"`
	IndTables int `json:"indTables"`
	MRs       int `json:"mrs"`
	CQs       int `json:"cqs"`
	WQs       int `json:"wqs"`
}

// Total returns the number of live objects.
func (c Counts) Total() int {
	return c.Flows + c.QPs + c.IndTables + c.MRs + c.CQs + c.WQs
}

type flowEntry struct {
	qp   verbs.QP
	attr verbs.FlowAttr
}

type qpEntry struct {
	cfg   verbs.HashQPConfig
	flows int
}

type tableEntry struct {
	wqs []verbs.WQ
	qps int
}

type mrEntry struct {
	addr   uintptr
	length int
}

type cqEntry struct {
	depth int
	wqs   int
}

type wqEntry struct {
	cfg    verbs.WQConfig
	state  verbs.WQState
	posted [][]verbs.SGE
	tables int
}

type fault struct {
	countdown int
	errno     unix.Errno
}

// Device is an emulated NIC port.
// It is safe for concurrent use.
type Device struct {
	cfg Config

	mu         sync.Mutex
	lastHandle uint64
	flows      map[verbs.Flow]*flowEntry
	qps        map[verbs.QP]*qpEntry
	tables     map[verbs.IndTable]*tableEntry
	mrs        map[uint64]*mrEntry
	cqs        map[verbs.CQ]*cqEntry
	wqs        map[verbs.WQ]*wqEntry
	faults     map[string]*fault
	calls      map[string]int
}

var _ verbs.Device = (*Device)(nil)

// New creates an emulated device.
func New(cfg Config) *Device {
	cfg.applyDefaults()
	return &Device{
		cfg:    cfg,
		flows:  map[verbs.Flow]*flowEntry{},
		qps:    map[verbs.QP]*qpEntry{},
		tables: map[verbs.IndTable]*tableEntry{},
		mrs:    map[uint64]*mrEntry{},
		cqs:    map[verbs.CQ]*cqEntry{},
		wqs:    map[verbs.WQ]*wqEntry{},
		faults: map[string]*fault{},
		calls:  map[string]int{},
	}
}

// Caps implements verbs.Device interface.
func (d *Device) Caps() verbs.Caps {
	return verbs.Caps{
		MaxQueueDepth:           d.cfg.MaxQueueDepth,
		MaxSGE:                  d.cfg.MaxSGE,
		MaxIndirectionTableSize: d.cfg.MaxIndirectionTableSize,
		HwChecksum:              d.cfg.HwChecksum,
		HwChecksumL2Tunnel:      d.cfg.HwChecksumL2Tunnel,
	}
}

// InjectFault arranges for the nth subsequent call of op to fail with errno.
// op is a verbs.Device method name, such as "CreateFlow".
// n=1 fails the next call.
func (d *Device) InjectFault(op string, n int, errno unix.Errno) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = &fault{countdown: n, errno: errno}
}

// ClearFaults cancels every pending fault.
func (d *Device) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = map[string]*fault{}
}

// Calls returns the number of invocations of op, including failed ones.
func (d *Device) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Counts returns the number of live objects.
func (d *Device) Counts() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Flows:     len(d.flows),
		QPs:       len(d.qps),
		IndTables: len(d.tables),
		MRs:       len(d.mrs),
		CQs:       len(d.cqs),
		WQs:       len(d.wqs),
	}
}

// enter counts an invocation and triggers an injected fault.
// Caller must hold d.mu.
func (d *Device) enter(op string) error {
	d.calls[op]++
	f := d.faults[op]
	if f == nil {
		return nil
	}
	if f.countdown--; f.countdown > 0 {
		return nil
	}
	delete(d.faults, op)
	logger.Debug("injected fault", zap.String("op", op), zap.Error(f.errno))
	return f.errno
}

func (d *Device) nextHandle() uint64 {
	d.lastHandle++
	return d.lastHandle
}
