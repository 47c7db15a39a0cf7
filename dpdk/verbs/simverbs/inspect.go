package simverbs

import (
	"sort"

	"github.com/usnistgov/rxsteer/dpdk/verbs"
)

// FlowInfo describes an installed flow rule.
type FlowInfo struct {
	Flow verbs.Flow
	QP   verbs.QP
	Attr verbs.FlowAttr
}

// Flows lists installed flow rules in creation order.
func (d *Device) Flows() (list []FlowInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for handle, f := range d.flows {
		list = append(list, FlowInfo{Flow: handle, QP: f.qp, Attr: f.attr})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Flow < list[j].Flow })
	return list
}

// FlowsOf returns the number of flow rules attached to a queue pair.
func (d *Device) FlowsOf(qp verbs.QP) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.qps[qp]; q != nil {
		return q.flows
	}
	return 0
}

// HashQP returns queue pair configuration.
func (d *Device) HashQP(qp verbs.QP) (cfg verbs.HashQPConfig, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.qps[qp]; q != nil {
		return q.cfg, true
	}
	return cfg, false
}

// IndirectionTable returns the entries of an indirection table.
func (d *Device) IndirectionTable(table verbs.IndTable) []verbs.WQ {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t := d.tables[table]; t != nil {
		return append([]verbs.WQ(nil), t.wqs...)
	}
	return nil
}

// WQState returns work queue state.
func (d *Device) WQState(wq verbs.WQ) (st verbs.WQState, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.wqs[wq]; w != nil {
		return w.state, true
	}
	return st, false
}

// WQConfig returns work queue parameters.
func (d *Device) WQConfig(wq verbs.WQ) (cfg verbs.WQConfig, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.wqs[wq]; w != nil {
		return w.cfg, true
	}
	return cfg, false
}

// Posted returns receive work requests posted to a work queue since it was last reset.
func (d *Device) Posted(wq verbs.WQ) [][]verbs.SGE {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.wqs[wq]; w != nil {
		return append([][]verbs.SGE(nil), w.posted...)
	}
	return nil
}

// CQDepth returns completion queue depth, or zero if it does not exist.
func (d *Device) CQDepth(cq verbs.CQ) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.cqs[cq]; c != nil {
		return c.depth
	}
	return 0
}
