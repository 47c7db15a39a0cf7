// Package verbs defines the hardware control surface of a receive-side NIC.
//
// The surface follows the shape of the RDMA verbs API used by poll-mode drivers:
// memory regions, completion queues, receive work queues, indirection tables,
// RSS hash queue pairs, and flow steering rules attached to queue pairs.
// Package simverbs provides a software implementation.
package verbs

import (
	"fmt"
)

// Handle types.
// A handle is opaque to callers; the zero value is the null handle.
type (
	// Flow is a flow steering rule.
	Flow uint64
	// QP is an RSS hash queue pair.
	QP uint64
	// IndTable is a receive work queue indirection table.
	IndTable uint64
	// CQ is a completion queue.
	CQ uint64
	// WQ is a receive work queue.
	WQ uint64
)

// MR is a registered memory region.
type MR struct {
	ID   uint64
	LKey uint32
}

// IsNull determines whether the memory region handle is null.
func (mr MR) IsNull() bool {
	return mr.ID == 0
}

// WQState is the state of a receive work queue.
type WQState int

// WQState values.
const (
	WQReset WQState = iota
	WQReady
)

func (st WQState) String() string {
	switch st {
	case WQReset:
		return "RESET"
	case WQReady:
		return "RDY"
	}
	return fmt.Sprintf("WQState(%d)", int(st))
}

// WQConfig contains receive work queue parameters.
type WQConfig struct {
	// CQ is the completion queue receiving completions of this work queue.
	CQ CQ
	// MaxRecvWR is the maximum number of outstanding receive work requests.
	MaxRecvWR int
	// MaxRecvSGE is the maximum number of scatter/gather elements in one work request.
	MaxRecvSGE int
	// Socket is the NUMA socket of the work queue; -1 means any.
	Socket int
}

// SGE is a scatter/gather element of a receive work request.
type SGE struct {
	Addr   uintptr
	Length uint32
	LKey   uint32
}

// HashQPConfig contains RSS hash queue pair parameters.
type HashQPConfig struct {
	// Table is the indirection table that distributes hash values to work queues.
	Table IndTable
	// HashFields selects packet fields that contribute to the Toeplitz hash.
	HashFields HashFields
	// RSSKey is the Toeplitz hash key.
	RSSKey []byte
}

// Caps describes device capabilities.
type Caps struct {
	// MaxQueueDepth is the maximum number of outstanding work requests in a work queue.
	MaxQueueDepth int `json:"maxQueueDepth"`
	// MaxSGE is the maximum number of scatter/gather elements in a work request.
	MaxSGE int `json:"maxSge"`
	// MaxIndirectionTableSize is the maximum number of entries in an indirection table.
	MaxIndirectionTableSize int `json:"maxIndirectionTableSize"`
	// HwChecksum indicates IP/L4 checksum verification offload.
	HwChecksum bool `json:"hwChecksum"`
	// HwChecksumL2Tunnel indicates checksum verification offload for inner headers of L2 tunnels.
	HwChecksumL2Tunnel bool `json:"hwChecksumL2Tunnel"`
}

// Device is the hardware control surface of one NIC port.
//
// Errors returned by a Device are typically unix.Errno values.
// Creation methods return a non-zero handle on success.
type Device interface {
	Caps() Caps

	CreateFlow(qp QP, attr FlowAttr) (Flow, error)
	DestroyFlow(flow Flow) error

	CreateIndirectionTable(log2Size int, wqs []WQ) (IndTable, error)
	DestroyIndirectionTable(table IndTable) error

	CreateHashQP(cfg HashQPConfig) (QP, error)
	DestroyQP(qp QP) error

	RegisterMemory(addr uintptr, length int) (MR, error)
	DeregisterMemory(mr MR) error

	CreateCQ(depth int) (CQ, error)
	ResizeCQ(cq CQ, depth int) error
	DestroyCQ(cq CQ) error

	CreateWQ(cfg WQConfig) (WQ, error)
	ModifyWQ(wq WQ, state WQState) error
	DestroyWQ(wq WQ) error

	// PostRecv posts one receive work request consisting of sges.
	PostRecv(wq WQ, sges []SGE) error
}
