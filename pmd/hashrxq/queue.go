package hashrxq

import (
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/core/undo"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/flow"
	"go.uber.org/zap"
)

// FilterState provides read access to the software filter tables.
type FilterState interface {
	// MACAddr returns the address in a MAC slot and whether the slot is configured.
	MACAddr(index int) (addr macaddr.EtherAddr, configured bool)
	// VLANs returns enabled VLAN identifiers in slot order.
	VLANs() []int
}

// Queue is an RSS hash queue: a queue pair hashing one protocol stack, and the flow rules attached to it.
type Queue struct {
	dev      verbs.Device
	state    FilterState
	port     int
	vf       bool
	hashType flow.HashType
	qp       verbs.QP

	macFlow      [pmd.MaxMACAddresses][]verbs.Flow
	promiscFlow  verbs.Flow
	allmultiFlow verbs.Flow
}

// HashType returns the protocol stack hashed by this queue.
func (q *Queue) HashType() flow.HashType {
	return q.hashType
}

// QP returns the queue pair handle.
func (q *Queue) QP() verbs.QP {
	return q.qp
}

// HasMAC determines whether rules for a MAC slot are installed.
func (q *Queue) HasMAC(index int) bool {
	return len(q.macFlow[index]) > 0
}

// HasPromiscuous determines whether the promiscuous rule is installed.
func (q *Queue) HasPromiscuous() bool {
	return q.promiscFlow != 0
}

// HasAllMulticast determines whether the all-multicast rule is installed.
func (q *Queue) HasAllMulticast() bool {
	return q.allmultiFlow != 0
}

// RuleCount returns the number of installed flow rules.
func (q *Queue) RuleCount() (n int) {
	for _, flows := range q.macFlow {
		n += len(flows)
	}
	if q.promiscFlow != 0 {
		n++
	}
	if q.allmultiFlow != 0 {
		n++
	}
	return n
}

func (q *Queue) createFlow(attr verbs.FlowAttr) (verbs.Flow, error) {
	handle, e := q.dev.CreateFlow(q.qp, attr)
	if e != nil {
		logger.Debug("CreateFlow error",
			zap.Stringer("hashType", q.hashType),
			zap.Stringer("attr", attr),
			zap.Error(e),
		)
		return 0, pmd.HardwareError("CreateFlow", e)
	}
	return handle, nil
}

func (q *Queue) destroyFlow(handle verbs.Flow) {
	if e := q.dev.DestroyFlow(handle); e != nil {
		logger.Error("DestroyFlow error",
			zap.Stringer("hashType", q.hashType),
			zap.Uint64("flow", uint64(handle)),
			zap.Error(e),
		)
	}
}

// AddMAC installs rules for a MAC slot, replacing existing rules of the slot.
// One rule is installed per enabled VLAN, or a single VLAN-wildcard rule if no VLAN is enabled.
// On error, no rule of the slot remains installed.
func (q *Queue) AddMAC(index int) error {
	addr, _ := q.state.MACAddr(index)
	q.DelMAC(index)

	vlans := q.state.VLANs()
	if len(vlans) == 0 {
		vlans = []int{pmd.NoVLAN}
	}

	flows := make([]verbs.Flow, 0, len(vlans))
	for _, vlan := range vlans {
		handle, e := q.createFlow(flow.Compile(q.port, q.hashType, addr, vlan))
		if e != nil {
			for i := len(flows) - 1; i >= 0; i-- {
				q.destroyFlow(flows[i])
			}
			return e
		}
		flows = append(flows, handle)
	}
	q.macFlow[index] = flows
	return nil
}

// DelMAC removes rules of a MAC slot.
// Destroy errors are logged and the rules are forgotten.
func (q *Queue) DelMAC(index int) {
	flows := q.macFlow[index]
	for i := len(flows) - 1; i >= 0; i-- {
		q.destroyFlow(flows[i])
	}
	q.macFlow[index] = nil
}

// AddMACs installs rules for every configured MAC slot.
// On error, rules installed by this call are removed.
func (q *Queue) AddMACs() (e error) {
	var u undo.Stack
	defer u.RollbackUnless(&e)

	for i := range q.macFlow {
		if _, configured := q.state.MACAddr(i); !configured {
			continue
		}
		if e = q.AddMAC(i); e != nil {
			return e
		}
		index := i
		u.Push(func() { q.DelMAC(index) })
	}
	return nil
}

// DelMACs removes rules of every MAC slot.
func (q *Queue) DelMACs() {
	for i := range q.macFlow {
		q.DelMAC(i)
	}
}

// EnablePromiscuous installs the promiscuous rule.
// It fails with pmd.ErrAlreadyActive if the rule is already installed.
// On a virtual function, promiscuous mode is not available and this is a successful no-op.
func (q *Queue) EnablePromiscuous() error {
	if q.vf {
		return nil
	}
	if q.promiscFlow != 0 {
		return pmd.ErrAlreadyActive
	}
	handle, e := q.createFlow(flow.CompileBroad(q.port, q.hashType))
	if e != nil {
		return e
	}
	q.promiscFlow = handle
	return nil
}

// DisablePromiscuous removes the promiscuous rule, if installed.
func (q *Queue) DisablePromiscuous() {
	if q.promiscFlow == 0 {
		return
	}
	q.destroyFlow(q.promiscFlow)
	q.promiscFlow = 0
}

// EnableAllMulticast installs the all-multicast rule.
// It fails with pmd.ErrAlreadyActive if the rule is already installed.
func (q *Queue) EnableAllMulticast() error {
	if q.allmultiFlow != 0 {
		return pmd.ErrAlreadyActive
	}
	handle, e := q.createFlow(flow.CompileAllMulticast(q.port))
	if e != nil {
		return e
	}
	q.allmultiFlow = handle
	return nil
}

// DisableAllMulticast removes the all-multicast rule, if installed.
func (q *Queue) DisableAllMulticast() {
	if q.allmultiFlow == 0 {
		return
	}
	q.destroyFlow(q.allmultiFlow)
	q.allmultiFlow = 0
}
