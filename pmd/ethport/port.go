// Package ethport is the configuration plane of a NIC port.
// It owns the filter table, the receive queues, and the hash queues of a started device,
// and serializes every operation on them.
package ethport

import (
	"fmt"
	"sync"

	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
	"github.com/usnistgov/rxsteer/pmd/rxfilter"
	"github.com/usnistgov/rxsteer/pmd/rxq"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var logger = logging.New("ethport")

// Port is a NIC port.
// It is safe for concurrent use; every exported method holds the port lock.
type Port struct {
	mu      sync.Mutex
	cfg     Config
	dev     verbs.Device
	logger  *zap.Logger
	filter  rxfilter.Table
	rxqs    []*rxq.Queue
	group   *hashrxq.Group
	started bool
	closed  bool
}

// New creates a Port.
// The permanent MAC address is configured at index 0 and the broadcast address at the last index.
func New(dev verbs.Device, cfg Config) (*Port, error) {
	cfg.applyDefaults()
	if e := cfg.validate(); e != nil {
		return nil, e
	}

	port := &Port{
		cfg:    cfg,
		dev:    dev,
		logger: logger.With(zap.Int("port", cfg.Port)),
		rxqs:   make([]*rxq.Queue, cfg.RxQueues),
	}
	port.filter.SetDefaults(cfg.MAC)
	if cfg.Promiscuous {
		port.filter.EnablePromiscuous(nil)
	}
	if cfg.AllMulticast {
		port.filter.EnableAllMulticast(nil)
	}

	port.logger.Info("port created",
		zap.Stringer("mac", cfg.MAC),
		zap.Int("rxQueues", cfg.RxQueues),
		zap.Bool("vf", cfg.VF),
	)
	return port, nil
}

// Config returns the effective configuration.
func (port *Port) Config() Config {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.cfg
}

func (port *Port) checkOpen() error {
	if port.closed {
		return fmt.Errorf("%w: port is closed", pmd.ErrAlreadyInactive)
	}
	return nil
}

func (port *Port) checkRxQueueIndex(idx int) error {
	if idx < 0 || idx >= len(port.rxqs) {
		return fmt.Errorf("%w: RX queue index %d out of range [0,%d)", pmd.ErrInvalidArgument, idx, len(port.rxqs))
	}
	return nil
}

// RxQueueSetup creates or replaces an RX queue.
// cfg.Index is overwritten with idx.
// Replacing an RX queue is rejected with pmd.ErrAlreadyActive while the port is started.
// When replacing, the old RX queue is released only after the new RX queue is ready.
func (port *Port) RxQueueSetup(idx int, cfg rxq.Config) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if e := port.checkOpen(); e != nil {
		return e
	}
	if e := port.checkRxQueueIndex(idx); e != nil {
		return e
	}

	old := port.rxqs[idx]
	if old != nil && port.started {
		return fmt.Errorf("%w: cannot replace RX queue %d while started", pmd.ErrAlreadyActive, idx)
	}

	cfg.Index = idx
	q, e := rxq.Setup(port.dev, cfg, port.cfg.RxMode)
	if e != nil {
		port.logger.Error("RX queue setup failed", zap.Int("rxq", idx), zap.Error(e))
		return e
	}

	port.rxqs[idx] = q
	if old != nil {
		if e := old.Close(); e != nil {
			port.logger.Warn("old RX queue release error", zap.Int("rxq", idx), zap.Error(e))
		}
	}
	return nil
}

// RxQueueRelease releases an RX queue.
// It is a no-op if the RX queue does not exist.
func (port *Port) RxQueueRelease(idx int) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if e := port.checkRxQueueIndex(idx); e != nil {
		return e
	}

	q := port.rxqs[idx]
	if q == nil {
		return nil
	}
	if port.started {
		return fmt.Errorf("%w: cannot release RX queue %d while started", pmd.ErrAlreadyActive, idx)
	}
	port.rxqs[idx] = nil
	return q.Close()
}

// RxQueue returns an RX queue, or nil if it does not exist.
func (port *Port) RxQueue(idx int) *rxq.Queue {
	port.mu.Lock()
	defer port.mu.Unlock()
	if port.checkRxQueueIndex(idx) != nil {
		return nil
	}
	return port.rxqs[idx]
}

// Start creates hash queues over every RX queue and installs flow rules reflecting the filter table.
// Every RX queue must have been set up. On error, everything created by this call is destroyed.
func (port *Port) Start() error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if e := port.checkOpen(); e != nil {
		return e
	}
	if port.started {
		return fmt.Errorf("%w: port is started", pmd.ErrAlreadyActive)
	}

	cfg := hashrxq.Config{
		Port:       port.cfg.Port,
		VF:         port.cfg.VF,
		WidenTable: port.cfg.WidenTable,
	}
	cfg.RSSKeys, _ = port.cfg.rssKeys()
	for idx, q := range port.rxqs {
		if q == nil {
			return fmt.Errorf("%w: RX queue %d is not set up", pmd.ErrInvalidArgument, idx)
		}
		cfg.WQs = append(cfg.WQs, q.WQ())
	}

	group, e := hashrxq.New(port.dev, &port.filter, cfg)
	if e != nil {
		port.logger.Error("hash queues creation failed", zap.Error(e))
		return e
	}
	if e := port.filter.Apply(group); e != nil {
		port.logger.Error("flow rules installation failed", zap.Error(e))
		if e := group.Close(); e != nil {
			port.logger.Error("hash queues destruction failed", zap.Error(e))
		}
		return e
	}

	port.group, port.started = group, true
	port.logger.Info("port started",
		zap.Int("hashQueues", len(group.Queues())),
		zap.Int("rules", group.RuleCount()),
	)
	return nil
}

// Stop removes flow rules and destroys hash queues.
// RX queues and the filter table are kept.
func (port *Port) Stop() error {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.stop()
}

func (port *Port) stop() error {
	if !port.started {
		return fmt.Errorf("%w: port is stopped", pmd.ErrAlreadyInactive)
	}
	port.filter.Unapply(port.group)
	e := port.group.Close()
	port.group, port.started = nil, false
	port.logger.Info("port stopped", zap.Error(e))
	return e
}

// Close stops the port if started and releases every RX queue.
// It is safe to call Close more than once.
func (port *Port) Close() error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if port.closed {
		return nil
	}

	var errs []error
	if port.started {
		errs = append(errs, port.stop())
	}
	for idx, q := range port.rxqs {
		if q != nil {
			errs = append(errs, q.Close())
			port.rxqs[idx] = nil
		}
	}
	port.closed = true

	e := multierr.Combine(errs...)
	if e != nil {
		port.logger.Error("port closed", zap.Error(e))
	} else {
		port.logger.Info("port closed")
	}
	return e
}

// IsStarted reports whether the port is started.
func (port *Port) IsStarted() bool {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.started
}

// MACAddrAdd configures a MAC address at index.
func (port *Port) MACAddrAdd(index int, addr macaddr.EtherAddr) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.filter.AddMAC(index, addr, port.group)
}

// MACAddrRemove unconfigures the MAC address at index.
func (port *Port) MACAddrRemove(index int) {
	port.mu.Lock()
	defer port.mu.Unlock()
	port.filter.RemoveMAC(index, port.group)
}

// SetPromiscuous enables or disables promiscuous mode.
// The setting is retained when the port is stopped and started again.
func (port *Port) SetPromiscuous(on bool) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if on {
		return port.filter.EnablePromiscuous(port.group)
	}
	return port.filter.DisablePromiscuous(port.group)
}

// SetAllMulticast enables or disables all-multicast mode.
// The setting is retained when the port is stopped and started again.
func (port *Port) SetAllMulticast(on bool) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if on {
		return port.filter.EnableAllMulticast(port.group)
	}
	port.filter.DisableAllMulticast(port.group)
	return nil
}

// VLANFilterSet enables or disables a VLAN filter.
func (port *Port) VLANFilterSet(id int, on bool) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.filter.SetVLAN(id, on, port.group)
}

// SetRxMode changes receive settings and rehashes every RX queue.
// The caller must quiesce the data path beforehand.
func (port *Port) SetRxMode(mode rxq.RxMode) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if e := port.checkOpen(); e != nil {
		return e
	}

	port.cfg.RxMode = mode
	var errs []error
	for _, q := range port.rxqs {
		if q != nil {
			errs = append(errs, q.Rehash(mode))
		}
	}
	return multierr.Combine(errs...)
}
