// Package rxq manages the lifecycle of a receive queue:
// its memory region, completion queue, receive work queue, and descriptor ring.
package rxq

import (
	"fmt"

	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/pmd/rxring"
)

var logger = logging.New("rxq")

// State is the lifecycle state of a receive queue.
type State int

// State values.
const (
	StateUnconfigured State = iota
	StateReady
	StateRehashing
	StateReleased
)

func (st State) String() string {
	switch st {
	case StateUnconfigured:
		return "unconfigured"
	case StateReady:
		return "ready"
	case StateRehashing:
		return "rehashing"
	case StateReleased:
		return "released"
	}
	return fmt.Sprintf("State(%d)", int(st))
}

// RxMode contains device-wide receive settings that affect every receive queue.
type RxMode struct {
	// JumboFrame permits frames longer than one buffer.
	JumboFrame bool `json:"jumboFrame,omitempty"`
	// MaxRxPktLen is the maximum frame length, effective when JumboFrame is set.
	MaxRxPktLen int `json:"maxRxPktLen,omitempty"`
	// HwIPChecksum requests checksum verification offload.
	HwIPChecksum bool `json:"hwIpChecksum,omitempty"`
}

// ringMode decides descriptor layout given buffer length.
func (m RxMode) ringMode(bufLen int) rxring.Mode {
	if m.JumboFrame && m.MaxRxPktLen > bufLen-pktmbuf.DefaultHeadroom {
		return rxring.Scattered
	}
	return rxring.Single
}

// Config contains receive queue configuration.
type Config struct {
	// Index is the receive queue index, used in logging.
	Index int
	// Descriptors is the number of buffers; it must be a non-zero multiple of pmd.ScatterSegments.
	// In scattered mode, each descriptor consumes pmd.ScatterSegments buffers.
	Descriptors int
	// Socket is the NUMA socket; -1 means any.
	Socket int
	// Pool is the buffer pool.
	Pool *pktmbuf.Pool
}
