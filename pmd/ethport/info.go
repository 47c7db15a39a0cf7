package ethport

import (
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/pmd/flow"
	"github.com/usnistgov/rxsteer/pmd/rxq"
)

// MACInfo describes a configured MAC address.
type MACInfo struct {
	Index int               `json:"index"`
	Addr  macaddr.EtherAddr `json:"addr"`
}

// HashQueueInfo describes a hash queue of a started port.
type HashQueueInfo struct {
	HashType flow.HashType `json:"hashType"`
	Rules    int           `json:"rules"`
}

// Info describes a port.
type Info struct {
	Port         int             `json:"port"`
	Started      bool            `json:"started"`
	Promiscuous  bool            `json:"promiscuous"`
	AllMulticast bool            `json:"allMulticast"`
	RxMode       rxq.RxMode      `json:"rxMode"`
	MACs         []MACInfo       `json:"macs"`
	VLANs        []int           `json:"vlans"`
	RxQueues     []*rxq.Info     `json:"rxQueues"`
	HashQueues   []HashQueueInfo `json:"hashQueues,omitempty"`
}

// Info returns information about the port.
func (port *Port) Info() (info Info) {
	port.mu.Lock()
	defer port.mu.Unlock()

	info = Info{
		Port:         port.cfg.Port,
		Started:      port.started,
		Promiscuous:  port.filter.Promiscuous(),
		AllMulticast: port.filter.AllMulticast(),
		RxMode:       port.cfg.RxMode,
		MACs:         []MACInfo{},
		VLANs:        port.filter.VLANs(),
	}
	for index, slot := range port.filter.MACSlots() {
		if slot.Configured {
			info.MACs = append(info.MACs, MACInfo{Index: index, Addr: slot.Addr})
		}
	}
	for _, q := range port.rxqs {
		if q == nil {
			info.RxQueues = append(info.RxQueues, nil)
			continue
		}
		qi := q.Info()
		info.RxQueues = append(info.RxQueues, &qi)
	}
	if port.group != nil {
		for _, hq := range port.group.Queues() {
			info.HashQueues = append(info.HashQueues, HashQueueInfo{HashType: hq.HashType(), Rules: hq.RuleCount()})
		}
	}
	return info
}
