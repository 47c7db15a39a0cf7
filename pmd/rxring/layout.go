package rxring

import (
	"fmt"

	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/pmd"
)

// Mode selects the descriptor layout.
type Mode int

// Mode values.
const (
	// Single places each packet in one buffer.
	Single Mode = iota
	// Scattered places each packet in up to pmd.ScatterSegments chained buffers.
	Scattered
)

// Segments returns the number of buffers per descriptor.
func (m Mode) Segments() int {
	if m == Scattered {
		return pmd.ScatterSegments
	}
	return 1
}

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Scattered:
		return "scattered"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Layout is the storage of descriptors.
type Layout interface {
	Mode() Mode
	// Len returns the number of descriptors.
	Len() int
	// Desc returns the buffer segments of a descriptor.
	// The returned slice aliases layout storage.
	Desc(i int) []*pktmbuf.Buffer
}

type singleLayout []*pktmbuf.Buffer

func (singleLayout) Mode() Mode {
	return Single
}

func (l singleLayout) Len() int {
	return len(l)
}

func (l singleLayout) Desc(i int) []*pktmbuf.Buffer {
	return l[i : i+1]
}

type scatteredLayout [][pmd.ScatterSegments]*pktmbuf.Buffer

func (scatteredLayout) Mode() Mode {
	return Scattered
}

func (l scatteredLayout) Len() int {
	return len(l)
}

func (l scatteredLayout) Desc(i int) []*pktmbuf.Buffer {
	return l[i][:]
}

func newLayout(mode Mode, n int) Layout {
	if mode == Scattered {
		return make(scatteredLayout, n)
	}
	return make(singleLayout, n)
}
