// Package rxfilter maintains the software shadow of MAC and VLAN filters
// and keeps the flow rules of every hash queue consistent with it.
package rxfilter

import (
	"fmt"

	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/hashrxq"
)

var logger = logging.New("rxfilter")

// MacSlot is an entry of the MAC filter table.
type MacSlot struct {
	Addr       macaddr.EtherAddr `json:"addr"`
	Configured bool              `json:"configured"`
}

// VlanFilter is an entry of the VLAN filter table.
type VlanFilter struct {
	ID      int  `json:"id"`
	Enabled bool `json:"enabled"`
}

// Table is the filter table of a device.
// It is not thread-safe; the caller must serialize access.
type Table struct {
	macs     [pmd.MaxMACAddresses]MacSlot
	vlans    [pmd.MaxVLANFilters]VlanFilter
	promisc  bool
	allmulti bool
}

var _ hashrxq.FilterState = (*Table)(nil)

// MACAddr implements hashrxq.FilterState interface.
func (t *Table) MACAddr(index int) (addr macaddr.EtherAddr, configured bool) {
	slot := t.macs[index]
	return slot.Addr, slot.Configured
}

// VLANs implements hashrxq.FilterState interface.
func (t *Table) VLANs() (list []int) {
	for _, vf := range t.vlans {
		if vf.Enabled {
			list = append(list, vf.ID)
		}
	}
	return list
}

// SetDefaults configures the permanent address at the first MAC slot and the broadcast address at the last MAC slot.
// It only updates the filter table and should be called before the device starts.
// The broadcast slot cannot be removed.
func (t *Table) SetDefaults(permanent macaddr.EtherAddr) {
	t.macs[0] = MacSlot{Addr: permanent, Configured: true}
	t.macs[len(t.macs)-1] = MacSlot{Addr: macaddr.Broadcast, Configured: true}
}

// MACSlots returns a copy of the MAC filter table.
func (t *Table) MACSlots() []MacSlot {
	return append([]MacSlot(nil), t.macs[:]...)
}

// VLANFilters returns a copy of the VLAN filter table.
func (t *Table) VLANFilters() []VlanFilter {
	return append([]VlanFilter(nil), t.vlans[:]...)
}

// Promiscuous reports whether promiscuous mode is enabled.
func (t *Table) Promiscuous() bool {
	return t.promisc
}

// AllMulticast reports whether all-multicast mode is enabled.
func (t *Table) AllMulticast() bool {
	return t.allmulti
}

func checkMACIndex(index int) error {
	if index < 0 || index >= pmd.MaxMACAddresses {
		return fmt.Errorf("%w: MAC index %d out of range", pmd.ErrInvalidArgument, index)
	}
	return nil
}

// queuesOf returns hash queues that filter changes are programmed into.
// group is nil while the device is stopped.
func queuesOf(group *hashrxq.Group) []*hashrxq.Queue {
	if group == nil {
		return nil
	}
	return group.Queues()
}
