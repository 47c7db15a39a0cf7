package rxfilter

import (
	"fmt"

	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
	"go.uber.org/zap"
)

// SetVLAN enables or disables a VLAN filter.
//
// If group is non-nil, per-MAC rules are reinstalled to reflect the new VLAN filters.
// If reinstallation fails, the VLAN filter change is reverted.
func (t *Table) SetVLAN(id int, on bool, group *hashrxq.Group) (e error) {
	if id < 0 || id > pmd.MaxVLANID {
		return fmt.Errorf("%w: VLAN %d out of range", pmd.ErrInvalidArgument, id)
	}

	slot, free := -1, -1
	for i, vf := range t.vlans {
		switch {
		case vf.Enabled && vf.ID == id:
			slot = i
		case !vf.Enabled && free < 0:
			free = i
		}
	}

	switch {
	case on && slot >= 0, !on && slot < 0:
		return nil
	case on && free < 0:
		return fmt.Errorf("%w: VLAN filter table is full", pmd.ErrResourceExhausted)
	case on:
		slot = free
	}

	old := t.vlans[slot]
	t.DisableMACs(group)
	t.vlans[slot] = VlanFilter{ID: id, Enabled: on}
	if e = t.EnableMACs(group); e != nil {
		logger.Error("VLAN filter change failed", zap.Int("vlan", id), zap.Bool("on", on), zap.Error(e))
		t.vlans[slot] = old
		if e := t.EnableMACs(group); e != nil {
			logger.Error("MAC rules cannot be restored", zap.Error(e))
		}
		return e
	}

	logger.Debug("VLAN filter changed", zap.Int("vlan", id), zap.Bool("on", on), zap.Int("slot", slot))
	return nil
}
