package rxfilter

import (
	"fmt"

	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/core/undo"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
	"go.uber.org/zap"
)

// AddMAC configures a MAC address at index, replacing the existing entry.
// The slot holding the broadcast address cannot be replaced.
//
// If group is nil, only the filter table is updated.
// Otherwise, rules are installed on every hash queue not in promiscuous mode;
// if a hash queue fails, the rules installed on preceding hash queues are removed
// and the slot is left unconfigured.
func (t *Table) AddMAC(index int, addr macaddr.EtherAddr, group *hashrxq.Group) (e error) {
	if e := checkMACIndex(index); e != nil {
		return e
	}
	if addr.IsBroadcast() {
		return pmd.ErrInvalidAddress
	}
	if slot := t.macs[index]; slot.Configured && slot.Addr.IsBroadcast() {
		return fmt.Errorf("%w: index %d holds the broadcast address", pmd.ErrInvalidArgument, index)
	}
	for i, slot := range t.macs {
		if i != index && slot.Configured && slot.Addr == addr {
			return fmt.Errorf("%w: %s at index %d", pmd.ErrAddressConflict, addr, i)
		}
	}

	t.RemoveMAC(index, group)
	t.macs[index] = MacSlot{Addr: addr}

	var u undo.Stack
	defer u.RollbackUnless(&e)
	for _, q := range queuesOf(group) {
		if q.HasPromiscuous() {
			continue
		}
		if e = q.AddMAC(index); e != nil {
			logger.Error("AddMAC error",
				zap.Int("index", index),
				zap.Stringer("addr", addr),
				zap.Stringer("hashType", q.HashType()),
				zap.Error(e),
			)
			return e
		}
		q := q
		u.Push(func() { q.DelMAC(index) })
	}

	t.macs[index].Configured = true
	logger.Debug("MAC address added", zap.Int("index", index), zap.Stringer("addr", addr), zap.Bool("programmed", group != nil))
	return nil
}

// RemoveMAC unconfigures the MAC address at index, removing its rules from every hash queue.
// It is a no-op if index is out of range, the slot is unconfigured, or the slot holds the broadcast address.
func (t *Table) RemoveMAC(index int, group *hashrxq.Group) {
	if checkMACIndex(index) != nil {
		return
	}
	slot := &t.macs[index]
	if !slot.Configured || slot.Addr.IsBroadcast() {
		return
	}

	for _, q := range queuesOf(group) {
		q.DelMAC(index)
	}
	slot.Configured = false
	logger.Debug("MAC address removed", zap.Int("index", index), zap.Stringer("addr", slot.Addr))
}

// EnableMACs installs rules of every configured MAC address on every hash queue not in promiscuous mode.
// If a hash queue fails, the rules installed on preceding hash queues are removed.
func (t *Table) EnableMACs(group *hashrxq.Group) (e error) {
	var u undo.Stack
	defer u.RollbackUnless(&e)
	for _, q := range queuesOf(group) {
		if q.HasPromiscuous() {
			continue
		}
		if e = q.AddMACs(); e != nil {
			return e
		}
		q := q
		u.Push(q.DelMACs)
	}
	return nil
}

// DisableMACs removes rules of every MAC address from every hash queue.
func (t *Table) DisableMACs(group *hashrxq.Group) {
	for _, q := range queuesOf(group) {
		q.DelMACs()
	}
}
