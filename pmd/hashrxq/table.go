package hashrxq

import (
	"fmt"
	"math/bits"

	binutils "github.com/jfoster/binary-utilities"
	"github.com/usnistgov/rxsteer/dpdk/verbs"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/flow"
)

// TableClass is a class of indirection table.
type TableClass int

// TableClass values.
const (
	// ClassGeneric spreads IP traffic over every work queue.
	ClassGeneric TableClass = iota
	// ClassDrain delivers non-IP traffic to the first work queue.
	ClassDrain
)

func (c TableClass) String() string {
	switch c {
	case ClassGeneric:
		return "generic"
	case ClassDrain:
		return "drain"
	}
	return fmt.Sprintf("TableClass(%d)", int(c))
}

type tableClassInfo struct {
	maxSize   int // zero means unbounded
	hashTypes []flow.HashType
}

var tableClassInfos = map[TableClass]tableClassInfo{
	ClassGeneric: {
		hashTypes: []flow.HashType{flow.TCPv4, flow.UDPv4, flow.IPv4, flow.TCPv6, flow.UDPv6, flow.IPv6},
	},
	ClassDrain: {
		maxSize:   1,
		hashTypes: []flow.HashType{flow.Eth},
	},
}

// HashTypes returns hash types served by this class.
func (c TableClass) HashTypes() []flow.HashType {
	return tableClassInfos[c].hashTypes
}

// IndirectionTable is an indirection table mapping hash buckets to receive work queues.
type IndirectionTable struct {
	Class   TableClass
	Handle  verbs.IndTable
	Entries []verbs.WQ
}

// TableSize computes indirection table size for count work queues.
//
// The size is count if it is a power of two.
// Otherwise, it is the next power of two, or if widen is set, the largest power of two
// not exceeding the hardware maximum.
// It fails with pmd.ErrInvalidArgument if no such size fits within the hardware maximum.
func TableSize(count, hwMax int, widen bool) (size int, e error) {
	if count <= 0 {
		return 0, fmt.Errorf("%w: no receive queue", pmd.ErrInvalidArgument)
	}
	size = int(binutils.NextPowerOfTwo(int64(count)))
	if size != count && widen && hwMax > 0 {
		size = 1 << (bits.Len(uint(hwMax)) - 1)
	}
	if size > hwMax || size < count {
		return 0, fmt.Errorf("%w: %d receive queues do not fit indirection table of hardware maximum %d",
			pmd.ErrInvalidArgument, count, hwMax)
	}
	return size, nil
}

// padEntries fills an indirection table of the given size by repeating wqs.
func padEntries(wqs []verbs.WQ, size int) (entries []verbs.WQ) {
	entries = make([]verbs.WQ, size)
	for i := range entries {
		entries[i] = wqs[i%len(wqs)]
	}
	return entries
}

// log2 returns the base-2 logarithm of a power of two.
func log2(size int) int {
	return bits.TrailingZeros(uint(size))
}

// tableClasses returns indirection table classes needed for count work queues.
func tableClasses(count int) ([]TableClass, error) {
	switch {
	case count <= 0:
		return nil, fmt.Errorf("%w: no receive queue", pmd.ErrInvalidArgument)
	case count == 1:
		return []TableClass{ClassDrain}, nil
	}
	return []TableClass{ClassGeneric, ClassDrain}, nil
}
