package simverbs

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"go.uber.org/zap"
)

// Delivery describes where a packet is steered to.
type Delivery struct {
	Flow verbs.Flow
	QP   verbs.QP
	Hash uint32
	WQ   verbs.WQ
}

// Steer determines which work queue would receive a frame.
//
// Among matching flow rules, the one with lowest priority value wins;
// ties are broken by the number of specs, then by creation order.
// ok is false if no rule matches, i.e. the frame is dropped.
func (d *Device) Steer(frame []byte) (dl Delivery, ok bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	eth, _ := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if eth == nil {
		return dl, false
	}
	dst, e := macaddr.FromHardwareAddr(eth.DstMAC)
	if e != nil {
		return dl, false
	}
	vlan := -1
	if dot1q, _ := pkt.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q); dot1q != nil {
		vlan = int(dot1q.VLANIdentifier)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var best *flowEntry
	for handle, f := range d.flows {
		if !matchFlow(pkt, dst, vlan, f.attr) {
			continue
		}
		if best == nil || f.attr.Priority < best.attr.Priority ||
			(f.attr.Priority == best.attr.Priority && (len(f.attr.Specs) > len(best.attr.Specs) ||
				(len(f.attr.Specs) == len(best.attr.Specs) && handle < dl.Flow))) {
			best, dl.Flow = f, handle
		}
	}
	if best == nil {
		logger.Debug("no matching flow", zap.Stringer("dst", dst), zap.Int("vlan", vlan))
		return Delivery{}, false
	}

	dl.QP = best.qp
	q := d.qps[best.qp]
	dl.Hash = Toeplitz(q.cfg.RSSKey, hashInput(pkt, q.cfg.HashFields))
	wqs := d.tables[q.cfg.Table].wqs
	dl.WQ = wqs[dl.Hash&uint32(len(wqs)-1)]
	return dl, true
}

func matchFlow(pkt gopacket.Packet, dst macaddr.EtherAddr, vlan int, attr verbs.FlowAttr) bool {
	if attr.Type == verbs.FlowMulticastDefault {
		return dst.IsGroup() && !dst.IsBroadcast()
	}

	for _, spec := range attr.Specs {
		if pkt.Layer(spec.Layer) == nil {
			return false
		}
		if spec.Layer != layers.LayerTypeEthernet {
			continue
		}
		for i := range dst {
			if dst[i]&spec.DstMACMask[i] != spec.DstMAC[i]&spec.DstMACMask[i] {
				return false
			}
		}
		if spec.VLANMask != 0 && (vlan < 0 || uint16(vlan)&spec.VLANMask != spec.VLANTag&spec.VLANMask) {
			return false
		}
	}
	return true
}

func hashInput(pkt gopacket.Packet, fields verbs.HashFields) (input []byte) {
	if ip4, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ip4 != nil {
		if fields&verbs.HashSrcIPv4 != 0 {
			input = append(input, ip4.SrcIP.To4()...)
		}
		if fields&verbs.HashDstIPv4 != 0 {
			input = append(input, ip4.DstIP.To4()...)
		}
	}
	if ip6, _ := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ip6 != nil {
		if fields&verbs.HashSrcIPv6 != 0 {
			input = append(input, ip6.SrcIP.To16()...)
		}
		if fields&verbs.HashDstIPv6 != 0 {
			input = append(input, ip6.DstIP.To16()...)
		}
	}
	if tcp, _ := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); tcp != nil {
		if fields&verbs.HashSrcPortTCP != 0 {
			input = appendPort(input, uint16(tcp.SrcPort))
		}
		if fields&verbs.HashDstPortTCP != 0 {
			input = appendPort(input, uint16(tcp.DstPort))
		}
	}
	if udp, _ := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); udp != nil {
		if fields&verbs.HashSrcPortUDP != 0 {
			input = appendPort(input, uint16(udp.SrcPort))
		}
		if fields&verbs.HashDstPortUDP != 0 {
			input = appendPort(input, uint16(udp.DstPort))
		}
	}
	return input
}

func appendPort(b []byte, port uint16) []byte {
	return append(b, byte(port>>8), byte(port))
}
