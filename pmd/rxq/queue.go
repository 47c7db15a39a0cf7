package rxq

import (
	"errors"
	"fmt"
	"io"

	"github.com/pkg/math"
	"github.com/usnistgov/rxsteer/core/events"
	"github.com/usnistgov/rxsteer/core/undo"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/rxring"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const evtStateChange = "StateChange"

// Queue is a receive queue.
// It is not thread-safe; the caller must serialize access.
type Queue struct {
	dev     verbs.Device
	cfg     Config
	logger  *zap.Logger
	emitter *events.Emitter

	state     State
	bufLen    int
	csum      bool
	csumL2Tun bool
	mr        verbs.MR
	cq        verbs.CQ
	wq        verbs.WQ
	ring      *rxring.Ring
}

// Setup creates a receive queue.
//
// Steps are: validate the descriptor count, determine the buffer length, register the pool memory region,
// create the completion queue and the receive work queue, allocate the descriptor ring,
// move the work queue to ready state, and post every descriptor.
// If any step fails, everything created so far is destroyed and the error is returned.
//
// The work queue is sized for the single layout, so that a later Rehash may switch layout in either direction.
func Setup(dev verbs.Device, cfg Config, mode RxMode) (_ *Queue, e error) {
	desc := cfg.Descriptors
	if desc <= 0 || desc%pmd.ScatterSegments != 0 {
		return nil, pmd.ErrInvalidDescriptorCount
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("%w: no buffer pool", pmd.ErrInvalidArgument)
	}

	q := &Queue{
		dev:     dev,
		cfg:     cfg,
		logger:  logger.With(zap.Int("rxq", cfg.Index)),
		emitter: events.NewEmitter(),
	}

	sample, e := cfg.Pool.Alloc()
	if e != nil {
		return nil, pmd.ErrOutOfBuffers
	}
	q.bufLen = sample.BufLen()
	cfg.Pool.Free(sample)

	q.updateChecksum(mode)
	ringMode := mode.ringMode(q.bufLen)
	desc /= ringMode.Segments()
	caps := dev.Caps()

	var u undo.Stack
	defer u.RollbackUnless(&e)

	addr, length := cfg.Pool.Region()
	if q.mr, e = dev.RegisterMemory(addr, length); e != nil {
		return nil, pmd.HardwareError("RegisterMemory", e)
	}
	u.Push(func() { q.release(&q.mr) })

	if q.cq, e = dev.CreateCQ(desc); e != nil {
		return nil, pmd.HardwareError("CreateCQ", e)
	}
	u.Push(func() { q.release(&q.cq) })

	if q.wq, e = dev.CreateWQ(verbs.WQConfig{
		CQ:         q.cq,
		MaxRecvWR:  math.MinInt(caps.MaxQueueDepth, cfg.Descriptors),
		MaxRecvSGE: math.MinInt(caps.MaxSGE, pmd.ScatterSegments),
		Socket:     cfg.Socket,
	}); e != nil {
		return nil, pmd.HardwareError("CreateWQ", e)
	}
	u.Push(func() { q.release(&q.wq) })

	if q.ring, e = rxring.New(desc, ringMode, cfg.Pool); e != nil {
		return nil, e
	}
	u.Push(func() { q.release(&q.ring) })

	if e = dev.ModifyWQ(q.wq, verbs.WQReady); e != nil {
		return nil, pmd.HardwareError("ModifyWQ", e)
	}
	if e = q.post(); e != nil {
		return nil, e
	}

	q.setState(StateReady)
	q.logger.Info("RX queue ready",
		zap.Int("descriptors", desc),
		zap.Stringer("mode", ringMode),
		zap.Int("socket", cfg.Socket),
		zap.Bool("checksum", q.csum),
	)
	return q, nil
}

func (q *Queue) updateChecksum(mode RxMode) {
	caps := q.dev.Caps()
	q.csum = caps.HwChecksum && mode.HwIPChecksum
	q.csumL2Tun = caps.HwChecksumL2Tunnel && mode.HwIPChecksum
}

func (q *Queue) post() error {
	e := q.ring.Post(q.mr.LKey, func(sges []verbs.SGE) error {
		return q.dev.PostRecv(q.wq, sges)
	})
	return pmd.HardwareError("PostRecv", e)
}

func (q *Queue) setState(st State) {
	if q.state == st {
		return
	}
	old := q.state
	q.state = st
	q.emitter.Emit(evtStateChange, old, st)
}

// OnStateChange registers a callback when the lifecycle state changes.
// Returns an io.Closer that cancels the callback registration.
func (q *Queue) OnStateChange(cb func(old, st State)) io.Closer {
	return q.emitter.On(evtStateChange, cb)
}

// Index returns the receive queue index.
func (q *Queue) Index() int {
	return q.cfg.Index
}

// State returns the lifecycle state.
func (q *Queue) State() State {
	return q.state
}

// WQ returns the receive work queue handle, or zero after release.
func (q *Queue) WQ() verbs.WQ {
	return q.wq
}

// Ring returns the descriptor ring, or nil after release.
func (q *Queue) Ring() *rxring.Ring {
	return q.ring
}

// Scattered reports whether descriptors are in scattered mode.
func (q *Queue) Scattered() bool {
	return q.ring != nil && q.ring.Mode() == rxring.Scattered
}

// Checksum reports whether checksum verification offload is enabled.
func (q *Queue) Checksum() (csum, csumL2Tunnel bool) {
	return q.csum, q.csumL2Tun
}

// Rehash adapts the queue to a changed RxMode.
//
// Checksum flags are always updated. If the descriptor layout is unchanged, nothing else happens.
// Otherwise, the work queue is reset, the completion queue is resized, the descriptor ring is rebuilt in
// the new layout reusing every buffer, and the work queue is made ready and reposted.
//
// This is not transactional. If resetting the work queue fails, the queue is unchanged.
// If a later step fails, the queue stays in StateRehashing and the error is returned;
// the caller may retry Rehash or Close the queue.
func (q *Queue) Rehash(mode RxMode) (e error) {
	switch q.state {
	case StateReady, StateRehashing:
	default:
		return fmt.Errorf("%w: RX queue %d is %s", pmd.ErrAlreadyInactive, q.cfg.Index, q.state)
	}

	q.updateChecksum(mode)
	ringMode := mode.ringMode(q.bufLen)
	if ringMode == q.ring.Mode() && q.state == StateReady {
		q.logger.Debug("RX queue layout unchanged", zap.Stringer("mode", ringMode))
		return nil
	}
	desc := q.ring.CountBuffers() / ringMode.Segments()

	if e = q.dev.ModifyWQ(q.wq, verbs.WQReset); e != nil {
		q.logger.Error("cannot reset WQ", zap.Error(e))
		return pmd.HardwareError("ModifyWQ", e)
	}
	q.setState(StateRehashing)
	defer func() {
		if e != nil {
			q.logger.Error("RX queue rehash failed", zap.Stringer("mode", ringMode), zap.Error(e))
		}
	}()

	if e = q.dev.ResizeCQ(q.cq, desc); e != nil {
		return pmd.HardwareError("ResizeCQ", e)
	}

	if ringMode != q.ring.Mode() {
		ring, e := rxring.Rebuild(q.ring, ringMode)
		if e != nil {
			return e
		}
		q.ring.Close()
		q.ring = ring
	}

	if e = q.dev.ModifyWQ(q.wq, verbs.WQReady); e != nil {
		return pmd.HardwareError("ModifyWQ", e)
	}
	if e = q.post(); e != nil {
		return e
	}

	q.setState(StateReady)
	q.logger.Info("RX queue rehashed", zap.Int("descriptors", desc), zap.Stringer("mode", ringMode))
	return nil
}

// Close releases the queue.
// It is safe to call Close more than once.
func (q *Queue) Close() error {
	if q.state == StateReleased {
		return nil
	}
	e := multierr.Combine(
		q.release(&q.ring),
		q.release(&q.wq),
		q.release(&q.cq),
		q.release(&q.mr),
	)
	q.setState(StateReleased)
	q.logger.Info("RX queue released", zap.Error(e))
	return e
}

// release destroys one resource and clears its handle.
// It does nothing if the handle is already null.
func (q *Queue) release(ptr interface{}) (e error) {
	switch h := ptr.(type) {
	case **rxring.Ring:
		if *h != nil {
			e = (*h).Close()
			*h = nil
		}
	case *verbs.WQ:
		if *h != 0 {
			e = pmd.HardwareError("DestroyWQ", q.dev.DestroyWQ(*h))
			*h = 0
		}
	case *verbs.CQ:
		if *h != 0 {
			e = pmd.HardwareError("DestroyCQ", q.dev.DestroyCQ(*h))
			*h = 0
		}
	case *verbs.MR:
		if !h.IsNull() {
			e = pmd.HardwareError("DeregisterMemory", q.dev.DeregisterMemory(*h))
			*h = verbs.MR{}
		}
	default:
		panic(errors.New("unexpected resource type"))
	}
	return e
}

// Info describes a receive queue.
type Info struct {
	Index        int    `json:"index"`
	State        string `json:"state"`
	Mode         string `json:"mode"`
	Descriptors  int    `json:"descriptors"`
	Buffers      int    `json:"buffers"`
	Checksum     bool   `json:"checksum"`
	ChecksumL2TN bool   `json:"checksumL2Tunnel"`
	Socket       int    `json:"socket"`
}

// Info returns information about this queue.
func (q *Queue) Info() (info Info) {
	info = Info{
		Index:        q.cfg.Index,
		State:        q.state.String(),
		Checksum:     q.csum,
		ChecksumL2TN: q.csumL2Tun,
		Socket:       q.cfg.Socket,
	}
	if q.ring != nil {
		info.Mode = q.ring.Mode().String()
		info.Descriptors = q.ring.Len()
		info.Buffers = q.ring.CountBuffers()
	}
	return info
}
