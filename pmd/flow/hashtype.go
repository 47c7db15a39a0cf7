// Package flow compiles flow steering rules for RSS hash queues.
package flow

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
)

// HashType identifies the protocol stack hashed by an RSS hash queue.
type HashType int

// HashType values.
const (
	TCPv4 HashType = iota
	UDPv4
	IPv4
	TCPv6
	UDPv6
	IPv6
	Eth

	nHashTypes
)

// HashTypes lists every HashType.
var HashTypes = []HashType{TCPv4, UDPv4, IPv4, TCPv6, UDPv6, IPv6, Eth}

type hashTypeInfo struct {
	name       string
	layer      gopacket.LayerType
	priority   int
	fields     verbs.HashFields
	underlayer HashType
}

const noUnderlayer HashType = -1

var hashTypeInfos = [nHashTypes]hashTypeInfo{
	TCPv4: {
		name:       "tcp4",
		layer:      layers.LayerTypeTCP,
		priority:   0,
		fields:     verbs.HashSrcIPv4 | verbs.HashDstIPv4 | verbs.HashSrcPortTCP | verbs.HashDstPortTCP,
		underlayer: IPv4,
	},
	UDPv4: {
		name:       "udp4",
		layer:      layers.LayerTypeUDP,
		priority:   0,
		fields:     verbs.HashSrcIPv4 | verbs.HashDstIPv4 | verbs.HashSrcPortUDP | verbs.HashDstPortUDP,
		underlayer: IPv4,
	},
	IPv4: {
		name:       "ipv4",
		layer:      layers.LayerTypeIPv4,
		priority:   1,
		fields:     verbs.HashSrcIPv4 | verbs.HashDstIPv4,
		underlayer: Eth,
	},
	TCPv6: {
		name:       "tcp6",
		layer:      layers.LayerTypeTCP,
		priority:   0,
		fields:     verbs.HashSrcIPv6 | verbs.HashDstIPv6 | verbs.HashSrcPortTCP | verbs.HashDstPortTCP,
		underlayer: IPv6,
	},
	UDPv6: {
		name:       "udp6",
		layer:      layers.LayerTypeUDP,
		priority:   0,
		fields:     verbs.HashSrcIPv6 | verbs.HashDstIPv6 | verbs.HashSrcPortUDP | verbs.HashDstPortUDP,
		underlayer: IPv6,
	},
	IPv6: {
		name:       "ipv6",
		layer:      layers.LayerTypeIPv6,
		priority:   1,
		fields:     verbs.HashSrcIPv6 | verbs.HashDstIPv6,
		underlayer: Eth,
	},
	Eth: {
		name:       "eth",
		layer:      layers.LayerTypeEthernet,
		priority:   2,
		underlayer: noUnderlayer,
	},
}

// Valid determines whether t is a known hash type.
func (t HashType) Valid() bool {
	return t >= 0 && t < nHashTypes
}

func (t HashType) info() hashTypeInfo {
	if !t.Valid() {
		panic(fmt.Sprintf("invalid HashType %d", int(t)))
	}
	return hashTypeInfos[t]
}

func (t HashType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("HashType(%d)", int(t))
	}
	return hashTypeInfos[t].name
}

// ParseHashType parses a hash type name, such as "tcp4".
func ParseHashType(input string) (HashType, error) {
	for _, t := range HashTypes {
		if strings.EqualFold(input, t.String()) {
			return t, nil
		}
	}
	return -1, fmt.Errorf("unknown hash type %s", input)
}

// MarshalText implements encoding.TextMarshaler interface.
func (t HashType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid HashType %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler interface.
func (t *HashType) UnmarshalText(text []byte) (e error) {
	*t, e = ParseHashType(string(text))
	return e
}

// Priority returns the flow rule priority; lower value wins.
// More specific protocol stacks have lower values.
func (t HashType) Priority() int {
	return t.info().priority
}

// HashFields returns packet fields that contribute to the RSS hash.
func (t HashType) HashFields() verbs.HashFields {
	return t.info().fields
}

// Layer returns the innermost protocol layer matched by this hash type.
func (t HashType) Layer() gopacket.LayerType {
	return t.info().layer
}

// Layers returns the protocol stack matched by this hash type, outermost first.
func (t HashType) Layers() (list []gopacket.LayerType) {
	for u := t; u != noUnderlayer; u = u.info().underlayer {
		list = append([]gopacket.LayerType{u.Layer()}, list...)
	}
	return list
}
