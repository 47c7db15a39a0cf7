package verbs

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/usnistgov/rxsteer/core/macaddr"
)

// FlowType is the type of a flow steering rule.
type FlowType int

// FlowType values.
const (
	// FlowNormal matches packets against its specs.
	FlowNormal FlowType = iota
	// FlowMulticastDefault matches every multicast packet not otherwise matched.
	FlowMulticastDefault
)

func (t FlowType) String() string {
	switch t {
	case FlowNormal:
		return "normal"
	case FlowMulticastDefault:
		return "mc-default"
	}
	return fmt.Sprintf("FlowType(%d)", int(t))
}

// FlowAttr describes a flow steering rule.
type FlowAttr struct {
	Type FlowType
	// Priority decides between overlapping rules; lower value wins.
	Priority int
	// Port is the physical port number.
	Port int
	// Specs lists per-layer match items, outermost layer first.
	Specs []FlowSpec
}

func (attr FlowAttr) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s prio=%d port=%d", attr.Type, attr.Priority, attr.Port)
	for _, spec := range attr.Specs {
		b.WriteString(" ")
		b.WriteString(spec.String())
	}
	return b.String()
}

// FlowSpec is a match item of one protocol layer.
//
// A spec of any layer requires the layer to be present.
// Address fields are only meaningful for Ethernet.
type FlowSpec struct {
	Layer gopacket.LayerType

	DstMAC     macaddr.EtherAddr
	DstMACMask macaddr.EtherAddr
	VLANTag    uint16
	VLANMask   uint16
}

func (spec FlowSpec) String() string {
	if spec.Layer != layers.LayerTypeEthernet {
		return spec.Layer.String()
	}
	s := spec.Layer.String()
	if !spec.DstMACMask.IsZero() {
		s += "(dst=" + spec.DstMAC.String()
		if spec.VLANMask != 0 {
			s += fmt.Sprintf(",vlan=%d", spec.VLANTag&spec.VLANMask)
		}
		s += ")"
	}
	return s
}

// HashFields is a bitmask of packet fields that contribute to the RSS hash.
type HashFields uint32

// HashFields bits.
const (
	HashSrcIPv4 HashFields = 1 << iota
	HashDstIPv4
	HashSrcIPv6
	HashDstIPv6
	HashSrcPortTCP
	HashDstPortTCP
	HashSrcPortUDP
	HashDstPortUDP
)
