package rxfilter

import (
	"github.com/usnistgov/rxsteer/core/undo"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
	"go.uber.org/zap"
)

// EnablePromiscuous enables promiscuous mode.
//
// On each hash queue, the promiscuous rule is installed and then per-MAC rules are removed.
// If a hash queue fails, preceding hash queues are restored and the mode stays disabled.
// It is a no-op if promiscuous mode is already enabled.
func (t *Table) EnablePromiscuous(group *hashrxq.Group) (e error) {
	if t.promisc {
		return nil
	}

	var u undo.Stack
	defer u.RollbackUnless(&e)
	for _, q := range queuesOf(group) {
		if e = q.EnablePromiscuous(); e != nil {
			logger.Error("EnablePromiscuous error", zap.Stringer("hashType", q.HashType()), zap.Error(e))
			return e
		}
		if !q.HasPromiscuous() {
			continue
		}
		q.DelMACs()
		q := q
		u.Push(func() {
			if e := q.AddMACs(); e != nil {
				logger.Error("AddMACs error during rollback", zap.Stringer("hashType", q.HashType()), zap.Error(e))
			}
			q.DisablePromiscuous()
		})
	}

	t.promisc = true
	logger.Info("promiscuous mode enabled", zap.Bool("programmed", group != nil))
	return nil
}

// DisablePromiscuous disables promiscuous mode.
//
// On each hash queue, per-MAC rules are restored and then the promiscuous rule is removed.
// If a hash queue fails, preceding hash queues return to promiscuous mode and the mode stays enabled.
// It is a no-op if promiscuous mode is already disabled.
func (t *Table) DisablePromiscuous(group *hashrxq.Group) (e error) {
	if !t.promisc {
		return nil
	}

	var u undo.Stack
	defer u.RollbackUnless(&e)
	for _, q := range queuesOf(group) {
		if !q.HasPromiscuous() {
			continue
		}
		if e = q.AddMACs(); e != nil {
			logger.Error("AddMACs error", zap.Stringer("hashType", q.HashType()), zap.Error(e))
			return e
		}
		q.DisablePromiscuous()
		q := q
		u.Push(func() {
			if e := q.EnablePromiscuous(); e != nil {
				logger.Error("EnablePromiscuous error during rollback", zap.Stringer("hashType", q.HashType()), zap.Error(e))
				return
			}
			q.DelMACs()
		})
	}

	t.promisc = false
	logger.Info("promiscuous mode disabled", zap.Bool("programmed", group != nil))
	return nil
}

// EnableAllMulticast enables all-multicast mode, installing the all-multicast rule on each hash queue.
// If a hash queue fails, preceding hash queues are restored and the mode stays disabled.
// It is a no-op if all-multicast mode is already enabled.
func (t *Table) EnableAllMulticast(group *hashrxq.Group) (e error) {
	if t.allmulti {
		return nil
	}

	var u undo.Stack
	defer u.RollbackUnless(&e)
	for _, q := range queuesOf(group) {
		if e = q.EnableAllMulticast(); e != nil {
			logger.Error("EnableAllMulticast error", zap.Stringer("hashType", q.HashType()), zap.Error(e))
			return e
		}
		u.Push(q.DisableAllMulticast)
	}

	t.allmulti = true
	logger.Info("all-multicast mode enabled", zap.Bool("programmed", group != nil))
	return nil
}

// DisableAllMulticast disables all-multicast mode, removing the all-multicast rule from each hash queue.
// It is a no-op if all-multicast mode is already disabled.
func (t *Table) DisableAllMulticast(group *hashrxq.Group) {
	if !t.allmulti {
		return
	}
	for _, q := range queuesOf(group) {
		q.DisableAllMulticast()
	}
	t.allmulti = false
	logger.Info("all-multicast mode disabled", zap.Bool("programmed", group != nil))
}

// Apply installs rules reflecting the filter table onto a new set of hash queues.
// This is used when the device starts. On error, every rule installed by this call is removed.
func (t *Table) Apply(group *hashrxq.Group) (e error) {
	var u undo.Stack
	defer u.RollbackUnless(&e)

	if t.promisc {
		for _, q := range queuesOf(group) {
			if e = q.EnablePromiscuous(); e != nil {
				return e
			}
			u.Push(q.DisablePromiscuous)
		}
	}

	if e = t.EnableMACs(group); e != nil {
		return e
	}
	u.Push(func() { t.DisableMACs(group) })

	if t.allmulti {
		for _, q := range queuesOf(group) {
			if e = q.EnableAllMulticast(); e != nil {
				return e
			}
			u.Push(q.DisableAllMulticast)
		}
	}
	return nil
}

// Unapply removes every rule from the hash queues.
// This is used when the device stops. The filter table is unchanged.
func (t *Table) Unapply(group *hashrxq.Group) {
	for _, q := range queuesOf(group) {
		q.DisableAllMulticast()
		q.DelMACs()
		q.DisablePromiscuous()
	}
}
