package simverbs

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/usnistgov/rxsteer/core/macaddr"
)

// FrameSpec describes a test frame.
type FrameSpec struct {
	Src macaddr.EtherAddr
	Dst macaddr.EtherAddr
	// VLAN is the VLAN identifier; negative means untagged.
	VLAN int
	// Proto is one of: eth, ipv4, tcp4, udp4, ipv6, tcp6, udp6.
	Proto   string
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
}

func (spec *FrameSpec) applyDefaults() {
	if spec.Src.IsZero() {
		spec.Src = macaddr.MustParse("02:00:00:00:00:01")
	}
	if spec.Proto == "" {
		spec.Proto = "eth"
	}
	v6 := spec.Proto == "ipv6" || spec.Proto == "tcp6" || spec.Proto == "udp6"
	if spec.SrcIP == nil {
		if v6 {
			spec.SrcIP = net.ParseIP("fd00::1")
		} else {
			spec.SrcIP = net.IPv4(192, 0, 2, 1)
		}
	}
	if spec.DstIP == nil {
		if v6 {
			spec.DstIP = net.ParseIP("fd00::2")
		} else {
			spec.DstIP = net.IPv4(192, 0, 2, 2)
		}
	}
	if spec.SrcPort == 0 {
		spec.SrcPort = 1024
	}
	if spec.DstPort == 0 {
		spec.DstPort = 6363
	}
}

// BuildFrame serializes a test frame.
func BuildFrame(spec FrameSpec) ([]byte, error) {
	spec.applyDefaults()

	var stack []gopacket.SerializableLayer
	eth := &layers.Ethernet{
		SrcMAC:       spec.Src.HardwareAddr(),
		DstMAC:       spec.Dst.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	stack = append(stack, eth)

	next := &eth.EthernetType
	if spec.VLAN >= 0 {
		eth.EthernetType = layers.EthernetTypeDot1Q
		dot1q := &layers.Dot1Q{VLANIdentifier: uint16(spec.VLAN), Type: layers.EthernetTypeIPv4}
		stack = append(stack, dot1q)
		next = &dot1q.Type
	}

	var l4 layers.IPProtocol
	switch spec.Proto {
	case "eth":
		*next = layers.EthernetType(0x88B5)
		stack = append(stack, gopacket.Payload(make([]byte, 46)))
		return serialize(stack, nil)
	case "ipv4", "ipv6":
		l4 = layers.IPProtocolNoNextHeader
	case "tcp4", "tcp6":
		l4 = layers.IPProtocolTCP
	case "udp4", "udp6":
		l4 = layers.IPProtocolUDP
	default:
		return nil, fmt.Errorf("unknown protocol %s", spec.Proto)
	}

	var ipLayer gopacket.NetworkLayer
	switch spec.Proto {
	case "ipv4", "tcp4", "udp4":
		ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: l4, SrcIP: spec.SrcIP.To4(), DstIP: spec.DstIP.To4()}
		if ip4.SrcIP == nil || ip4.DstIP == nil {
			return nil, fmt.Errorf("%s requires IPv4 addresses", spec.Proto)
		}
		stack, ipLayer = append(stack, ip4), ip4
	default:
		*next = layers.EthernetTypeIPv6
		ip6 := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: l4, SrcIP: spec.SrcIP.To16(), DstIP: spec.DstIP.To16()}
		stack, ipLayer = append(stack, ip6), ip6
	}

	switch l4 {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(spec.SrcPort), DstPort: layers.TCPPort(spec.DstPort), SYN: true, Window: 65535}
		stack = append(stack, tcp, gopacket.Payload(make([]byte, 8)))
		return serialize(stack, func() error { return tcp.SetNetworkLayerForChecksum(ipLayer) })
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(spec.SrcPort), DstPort: layers.UDPPort(spec.DstPort)}
		stack = append(stack, udp, gopacket.Payload(make([]byte, 8)))
		return serialize(stack, func() error { return udp.SetNetworkLayerForChecksum(ipLayer) })
	}
	return serialize(stack, nil)
}

func serialize(stack []gopacket.SerializableLayer, prepare func() error) ([]byte, error) {
	if prepare != nil {
		if e := prepare(); e != nil {
			return nil, e
		}
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if e := gopacket.SerializeLayers(buf, opts, stack...); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}
