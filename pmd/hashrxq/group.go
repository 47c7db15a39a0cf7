package hashrxq

import (
	"fmt"

	"github.com/usnistgov/rxsteer/core/undo"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/flow"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config contains Group configuration.
type Config struct {
	// WQs lists receive work queues, in RX queue index order.
	WQs []verbs.WQ
	// Port is the physical port number used in flow rules.
	Port int
	// VF indicates the device is a virtual function, where promiscuous mode is unavailable.
	VF bool
	// RSSKeys contains per hash type Toeplitz keys.
	// flow.DefaultRSSKey is used for hash types absent from this map.
	RSSKeys map[flow.HashType][]byte
	// WidenTable selects the hardware maximum indirection table size when the number of work queues
	// is not a power of two. Otherwise, the next power of two is used.
	WidenTable bool
}

func (cfg Config) rssKey(t flow.HashType) []byte {
	if key := cfg.RSSKeys[t]; len(key) > 0 {
		return key
	}
	return flow.DefaultRSSKey
}

// Group is the set of indirection tables and hash queues of a started device.
type Group struct {
	dev    verbs.Device
	tables []*IndirectionTable
	queues []*Queue
}

// New creates indirection tables and hash queues.
// If any step fails, every object created so far is destroyed and the first error is returned.
func New(dev verbs.Device, state FilterState, cfg Config) (_ *Group, e error) {
	classes, e := tableClasses(len(cfg.WQs))
	if e != nil {
		return nil, e
	}

	g := &Group{dev: dev}
	var u undo.Stack
	defer u.RollbackUnless(&e)

	hwMax := dev.Caps().MaxIndirectionTableSize
	for _, class := range classes {
		count := len(cfg.WQs)
		if maxSize := tableClassInfos[class].maxSize; maxSize > 0 && count > maxSize {
			count = maxSize
		}
		size, e := TableSize(count, hwMax, cfg.WidenTable)
		if e != nil {
			return nil, e
		}

		table := &IndirectionTable{
			Class:   class,
			Entries: padEntries(cfg.WQs[:count], size),
		}
		if table.Handle, e = dev.CreateIndirectionTable(log2(size), table.Entries); e != nil {
			return nil, pmd.HardwareError("CreateIndirectionTable", e)
		}
		u.Push(func() { g.destroyTable(table) })
		g.tables = append(g.tables, table)
		logger.Debug("indirection table created",
			zap.Stringer("class", class),
			zap.Int("size", size),
			zap.Int("wqs", count),
		)
	}

	for _, table := range g.tables {
		for _, t := range table.Class.HashTypes() {
			q := &Queue{
				dev:      dev,
				state:    state,
				port:     cfg.Port,
				vf:       cfg.VF,
				hashType: t,
			}
			qp, e := dev.CreateHashQP(verbs.HashQPConfig{
				Table:      table.Handle,
				HashFields: t.HashFields(),
				RSSKey:     cfg.rssKey(t),
			})
			if e != nil {
				return nil, pmd.HardwareError("CreateHashQP", e)
			}
			q.qp = qp
			u.Push(func() { g.destroyQP(q) })
			g.queues = append(g.queues, q)
		}
	}

	logger.Info("hash queues created",
		zap.Int("tables", len(g.tables)),
		zap.Int("queues", len(g.queues)),
	)
	return g, nil
}

func (g *Group) destroyTable(table *IndirectionTable) error {
	e := g.dev.DestroyIndirectionTable(table.Handle)
	if e != nil {
		logger.Error("DestroyIndirectionTable error", zap.Stringer("class", table.Class), zap.Error(e))
		return pmd.HardwareError("DestroyIndirectionTable", e)
	}
	return nil
}

func (g *Group) destroyQP(q *Queue) error {
	e := g.dev.DestroyQP(q.qp)
	if e != nil {
		logger.Error("DestroyQP error", zap.Stringer("hashType", q.hashType), zap.Error(e))
		return pmd.HardwareError("DestroyQP", e)
	}
	return nil
}

// Tables returns indirection tables.
func (g *Group) Tables() []*IndirectionTable {
	return g.tables
}

// Queues returns hash queues.
func (g *Group) Queues() []*Queue {
	return g.queues
}

// Queue returns the hash queue of a hash type, or nil if it does not exist.
func (g *Group) Queue(t flow.HashType) *Queue {
	for _, q := range g.queues {
		if q.hashType == t {
			return q
		}
	}
	return nil
}

// RuleCount returns the number of installed flow rules across all hash queues.
func (g *Group) RuleCount() (n int) {
	for _, q := range g.queues {
		n += q.RuleCount()
	}
	return n
}

// Close destroys hash queues and indirection tables.
// Every flow rule must have been removed beforehand; otherwise, it panics with pmd.PreconditionViolation.
func (g *Group) Close() error {
	for _, q := range g.queues {
		pmd.Require(q.RuleCount() == 0, fmt.Sprintf("hash queue %s has installed flow rules", q.hashType))
	}

	var errs []error
	for i := len(g.queues) - 1; i >= 0; i-- {
		errs = append(errs, g.destroyQP(g.queues[i]))
	}
	for i := len(g.tables) - 1; i >= 0; i-- {
		errs = append(errs, g.destroyTable(g.tables[i]))
	}
	g.queues, g.tables = nil, nil
	return multierr.Combine(errs...)
}
