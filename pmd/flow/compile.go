package flow

import (
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
)

// VLANMask is the mask applied to the VLAN tag when a rule matches a VLAN identifier.
const VLANMask = 0x0FFF

// DefaultRSSKey is the Toeplitz hash key used when none is configured.
var DefaultRSSKey = []byte{
	0x2c, 0xc6, 0x81, 0xd1,
	0x5b, 0xdb, 0xf4, 0xf7,
	0xfc, 0xa2, 0x83, 0x19,
	0xdb, 0x1a, 0x3e, 0x94,
	0x6b, 0x9e, 0x38, 0xd9,
	0x2c, 0x9c, 0x03, 0xd1,
	0xad, 0x99, 0x44, 0xa7,
	0xd9, 0x56, 0x3d, 0x59,
	0x06, 0x3c, 0x25, 0xf3,
	0xfc, 0x1f, 0xdc, 0x2a,
}

func compileStack(port int, t HashType) verbs.FlowAttr {
	attr := verbs.FlowAttr{
		Type:     verbs.FlowNormal,
		Priority: t.Priority(),
		Port:     port,
	}
	for _, layer := range t.Layers() {
		attr.Specs = append(attr.Specs, verbs.FlowSpec{Layer: layer})
	}
	return attr
}

// Compile builds a rule that delivers unicast packets to mac, optionally tagged with vlan, into a hash queue of type t.
// vlan is a VLAN identifier, or pmd.NoVLAN to match any VLAN tag.
func Compile(port int, t HashType, mac macaddr.EtherAddr, vlan int) verbs.FlowAttr {
	attr := compileStack(port, t)
	eth := &attr.Specs[0]
	eth.DstMAC = mac
	eth.DstMACMask = macaddr.Broadcast
	if vlan != pmd.NoVLAN {
		eth.VLANTag = uint16(vlan) & VLANMask
		eth.VLANMask = VLANMask
	}
	return attr
}

// CompileBroad builds a rule that delivers every packet of the protocol stack into a hash queue of type t.
// It is used in promiscuous mode.
func CompileBroad(port int, t HashType) verbs.FlowAttr {
	return compileStack(port, t)
}

// CompileAllMulticast builds a rule that delivers every multicast packet.
func CompileAllMulticast(port int) verbs.FlowAttr {
	return verbs.FlowAttr{
		Type: verbs.FlowMulticastDefault,
		Port: port,
	}
}
