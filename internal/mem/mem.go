// Package mem implements the physical frame pool and the four-level
// PML4/PDPT/PD/PT page-table walk, grounded on biscuit's
// common/physmem.go and common/pmap.go. Unlike biscuit — which
// maintains a free list because pages are freed mid-run by munmap and
// process exit — this pool only ever grows via a high-water-mark cursor,
// per the prototype limitation that freed frames are leaked until
// process teardown.
package mem

import (
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
)

const (
	PGShift  = 12
	PGSize   = 1 << PGShift
	pgOffset = PGSize - 1
	pgMask   = ^uint64(pgOffset)
)

// Pte flag bits, positioned exactly as biscuit's common/vm.go PTE_*
// constants.
const (
	PteP  uint64 = 1 << 0 // present
	PteW  uint64 = 1 << 1 // writable
	PteU  uint64 = 1 << 2 // user
	PtePCD uint64 = 1 << 4
	PtePS uint64 = 1 << 7 // page size (2MiB/1GiB leaf)
	PteG  uint64 = 1 << 8 // global
	PteNX uint64 = 1 << 63
)

const pteAddr = pgMask &^ PteNX

// PageAlignDown rounds addr down to the nearest page boundary.
func PageAlignDown(addr uint64) uint64 { return addr &^ uint64(pgOffset) }

// Pa is a physical address.
type Pa uint64

// FramePool is a bounded array of physical frames, handed out by a
// single forward-moving cursor.
type FramePool struct {
	base     Pa
	capacity int
	next     int // index of the next never-yet-allocated frame
}

// NewFramePool constructs a pool of `capacity` frames starting at the
// given physical base address — the first address past the kernel
// image in this core's memory layout.
func NewFramePool(base Pa, capacity int) *FramePool {
	if capacity <= 0 {
		panic("mem: non-positive frame pool capacity")
	}
	return &FramePool{base: base, capacity: capacity}
}

// Capacity returns the total number of frames the pool can ever hand out.
func (p *FramePool) Capacity() int { return p.capacity }

// Allocated returns how many frames have been handed out so far.
func (p *FramePool) Allocated() int { return p.next }

// Exhausted reports whether every frame has been handed out.
func (p *FramePool) Exhausted() bool { return p.next >= p.capacity }

// Alloc claims the next frame from the high-water mark. The caller is
// responsible for zeroing it (vm.Manager does so via Memory.ZeroPage
// before establishing any mapping). Returns Exhausted once the pool is
// drained.
func (p *FramePool) Alloc() (Pa, defs.Err_t) {
	if p.Exhausted() {
		return 0, defs.Exhausted
	}
	idx := p.next
	p.next++
	return p.base + Pa(idx*PGSize), defs.OK
}
