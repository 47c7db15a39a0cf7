package simverbs

import (
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"golang.org/x/sys/unix"
)

// lkeyBase offsets memory region local keys from their handles, so that a handle is never mistaken for a key.
const lkeyBase = 0x10000

// CreateFlow implements verbs.Device interface.
func (d *Device) CreateFlow(qp verbs.QP, attr verbs.FlowAttr) (verbs.Flow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("CreateFlow"); e != nil {
		return 0, e
	}

	q := d.qps[qp]
	if q == nil {
		return 0, unix.EINVAL
	}
	if attr.Type == verbs.FlowMulticastDefault && len(attr.Specs) > 0 {
		return 0, unix.EINVAL
	}
	if d.cfg.MaxFlows > 0 && len(d.flows) >= d.cfg.MaxFlows {
		return 0, unix.ENOSPC
	}

	flow := verbs.Flow(d.nextHandle())
	attr.Specs = append([]verbs.FlowSpec(nil), attr.Specs...)
	d.flows[flow] = &flowEntry{qp: qp, attr: attr}
	q.flows++
	return flow, nil
}

// DestroyFlow implements verbs.Device interface.
func (d *Device) DestroyFlow(flow verbs.Flow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DestroyFlow"); e != nil {
		return e
	}

	f := d.flows[flow]
	if f == nil {
		return unix.ENOENT
	}
	d.qps[f.qp].flows--
	delete(d.flows, flow)
	return nil
}

// CreateIndirectionTable implements verbs.Device interface.
func (d *Device) CreateIndirectionTable(log2Size int, wqs []verbs.WQ) (verbs.IndTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("CreateIndirectionTable"); e != nil {
		return 0, e
	}

	if log2Size < 0 || log2Size > 30 || len(wqs) != 1<<log2Size || len(wqs) > d.cfg.MaxIndirectionTableSize {
		return 0, unix.EINVAL
	}
	for _, wq := range wqs {
		if d.wqs[wq] == nil {
			return 0, unix.EINVAL
		}
	}

	table := verbs.IndTable(d.nextHandle())
	d.tables[table] = &tableEntry{wqs: append([]verbs.WQ(nil), wqs...)}
	for _, wq := range wqs {
		d.wqs[wq].tables++
	}
	return table, nil
}

// DestroyIndirectionTable implements verbs.Device interface.
// It fails with EBUSY if a queue pair still uses the table.
func (d *Device) DestroyIndirectionTable(table verbs.IndTable) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DestroyIndirectionTable"); e != nil {
		return e
	}

	t := d.tables[table]
	switch {
	case t == nil:
		return unix.ENOENT
	case t.qps > 0:
		return unix.EBUSY
	}
	for _, wq := range t.wqs {
		d.wqs[wq].tables--
	}
	delete(d.tables, table)
	return nil
}

// CreateHashQP implements verbs.Device interface.
func (d *Device) CreateHashQP(cfg verbs.HashQPConfig) (verbs.QP, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("CreateHashQP"); e != nil {
		return 0, e
	}

	t := d.tables[cfg.Table]
	if t == nil || len(cfg.RSSKey) == 0 {
		return 0, unix.EINVAL
	}

	qp := verbs.QP(d.nextHandle())
	cfg.RSSKey = append([]byte(nil), cfg.RSSKey...)
	d.qps[qp] = &qpEntry{cfg: cfg}
	t.qps++
	return qp, nil
}

// DestroyQP implements verbs.Device interface.
// It fails with EBUSY if a flow rule is still attached.
func (d *Device) DestroyQP(qp verbs.QP) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DestroyQP"); e != nil {
		return e
	}

	q := d.qps[qp]
	switch {
	case q == nil:
		return unix.ENOENT
	case q.flows > 0:
		return unix.EBUSY
	}
	d.tables[q.cfg.Table].qps--
	delete(d.qps, qp)
	return nil
}

// RegisterMemory implements verbs.Device interface.
func (d *Device) RegisterMemory(addr uintptr, length int) (verbs.MR, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("RegisterMemory"); e != nil {
		return verbs.MR{}, e
	}

	if addr == 0 || length <= 0 {
		return verbs.MR{}, unix.EINVAL
	}
	id := d.nextHandle()
	d.mrs[id] = &mrEntry{addr: addr, length: length}
	return verbs.MR{ID: id, LKey: uint32(id) + lkeyBase}, nil
}

// DeregisterMemory implements verbs.Device interface.
func (d *Device) DeregisterMemory(mr verbs.MR) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DeregisterMemory"); e != nil {
		return e
	}

	if d.mrs[mr.ID] == nil {
		return unix.ENOENT
	}
	delete(d.mrs, mr.ID)
	return nil
}

// CreateCQ implements verbs.Device interface.
func (d *Device) CreateCQ(depth int) (verbs.CQ, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("CreateCQ"); e != nil {
		return 0, e
	}

	if depth <= 0 || depth > d.cfg.MaxCQDepth {
		return 0, unix.EINVAL
	}
	cq := verbs.CQ(d.nextHandle())
	d.cqs[cq] = &cqEntry{depth: depth}
	return cq, nil
}

// ResizeCQ implements verbs.Device interface.
func (d *Device) ResizeCQ(cq verbs.CQ, depth int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("ResizeCQ"); e != nil {
		return e
	}

	c := d.cqs[cq]
	switch {
	case c == nil:
		return unix.ENOENT
	case depth <= 0 || depth > d.cfg.MaxCQDepth:
		return unix.EINVAL
	}
	c.depth = depth
	return nil
}

// DestroyCQ implements verbs.Device interface.
// It fails with EBUSY if a work queue still uses the completion queue.
func (d *Device) DestroyCQ(cq verbs.CQ) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DestroyCQ"); e != nil {
		return e
	}

	c := d.cqs[cq]
	switch {
	case c == nil:
		return unix.ENOENT
	case c.wqs > 0:
		return unix.EBUSY
	}
	delete(d.cqs, cq)
	return nil
}

// CreateWQ implements verbs.Device interface.
// The work queue starts in WQReset state.
func (d *Device) CreateWQ(cfg verbs.WQConfig) (verbs.WQ, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("CreateWQ"); e != nil {
		return 0, e
	}

	c := d.cqs[cfg.CQ]
	if c == nil || cfg.MaxRecvWR <= 0 || cfg.MaxRecvWR > d.cfg.MaxQueueDepth ||
		cfg.MaxRecvSGE <= 0 || cfg.MaxRecvSGE > d.cfg.MaxSGE {
		return 0, unix.EINVAL
	}

	wq := verbs.WQ(d.nextHandle())
	d.wqs[wq] = &wqEntry{cfg: cfg, state: verbs.WQReset}
	c.wqs++
	return wq, nil
}

// ModifyWQ implements verbs.Device interface.
// Moving to WQReset flushes posted work requests.
func (d *Device) ModifyWQ(wq verbs.WQ, state verbs.WQState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("ModifyWQ"); e != nil {
		return e
	}

	w := d.wqs[wq]
	switch {
	case w == nil:
		return unix.ENOENT
	case state != verbs.WQReset && state != verbs.WQReady:
		return unix.EINVAL
	}
	w.state = state
	if state == verbs.WQReset {
		w.posted = nil
	}
	return nil
}

// DestroyWQ implements verbs.Device interface.
// It fails with EBUSY if an indirection table still refers to the work queue.
func (d *Device) DestroyWQ(wq verbs.WQ) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("DestroyWQ"); e != nil {
		return e
	}

	w := d.wqs[wq]
	switch {
	case w == nil:
		return unix.ENOENT
	case w.tables > 0:
		return unix.EBUSY
	}
	d.cqs[w.cfg.CQ].wqs--
	delete(d.wqs, wq)
	return nil
}

// PostRecv implements verbs.Device interface.
// The work queue must be in WQReady state, and every SGE must lie within a registered memory region.
func (d *Device) PostRecv(wq verbs.WQ, sges []verbs.SGE) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.enter("PostRecv"); e != nil {
		return e
	}

	w := d.wqs[wq]
	switch {
	case w == nil:
		return unix.ENOENT
	case w.state != verbs.WQReady:
		return unix.EINVAL
	case len(sges) == 0 || len(sges) > w.cfg.MaxRecvSGE:
		return unix.EINVAL
	case len(w.posted) >= w.cfg.MaxRecvWR:
		return unix.ENOMEM
	}
	for _, sge := range sges {
		if !d.covered(sge) {
			return unix.EFAULT
		}
	}

	w.posted = append(w.posted, append([]verbs.SGE(nil), sges...))
	return nil
}

func (d *Device) covered(sge verbs.SGE) bool {
	mr := d.mrs[uint64(sge.LKey-lkeyBase)]
	if mr == nil {
		return false
	}
	return sge.Addr >= mr.addr && sge.Addr+uintptr(sge.Length) <= mr.addr+uintptr(mr.length)
}
