package mem

import (
	"github.com/shivanshudwivedi/Microkernel/internal/arch"
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
)

// Memory is the kernel's view of physical RAM: a flat byte array indexed by
// physical address, standing in for biscuit's direct map (dmap()/
// _vdirect in common/physmem.go maps all of physical RAM at a fixed high
// virtual address so the kernel can treat a Pa like a pointer). Page
// tables and frame contents both live here.
type Memory struct {
	bytes []byte
	base  Pa
}

// NewMemory backs `size` bytes of physical RAM starting at base.
func NewMemory(base Pa, size int) *Memory {
	return &Memory{bytes: make([]byte, size), base: base}
}

func (m *Memory) off(pa Pa) int {
	o := int(pa - m.base)
	if o < 0 || o+8 > len(m.bytes) {
		panic("mem: physical address out of range")
	}
	return o
}

func (m *Memory) ReadU64(pa Pa) uint64 {
	o := m.off(pa)
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(m.bytes[o+i]) << (8 * i)
	}
	return v
}

func (m *Memory) WriteU64(pa Pa, v uint64) {
	o := m.off(pa)
	for i := 0; i < 8; i++ {
		m.bytes[o+i] = byte(v >> (8 * i))
	}
}

// ZeroPage zeroes the PGSize-aligned page containing pa.
func (m *Memory) ZeroPage(pa Pa) {
	start := m.off(Pa(PageAlignDown(uint64(pa))))
	for i := 0; i < PGSize; i++ {
		m.bytes[start+i] = 0
	}
}

// WritePage copies data into the page at pa (truncated/zero-padded to a
// page).
func (m *Memory) WritePage(pa Pa, data []byte) {
	m.ZeroPage(pa)
	start := m.off(Pa(PageAlignDown(uint64(pa))))
	n := len(data)
	if n > PGSize {
		n = PGSize
	}
	copy(m.bytes[start:start+n], data[:n])
}

// ReadPage returns a copy of the page at pa.
func (m *Memory) ReadPage(pa Pa) []byte {
	start := m.off(Pa(PageAlignDown(uint64(pa))))
	out := make([]byte, PGSize)
	copy(out, m.bytes[start:start+PGSize])
	return out
}

const entriesPerTable = 512

func pml4Index(v uint64) uint64 { return (v >> (12 + 9*3)) & 0x1ff }
func pdptIndex(v uint64) uint64 { return (v >> (12 + 9*2)) & 0x1ff }
func pdIndex(v uint64) uint64   { return (v >> (12 + 9*1)) & 0x1ff }
func ptIndex(v uint64) uint64   { return (v >> (12 + 9*0)) & 0x1ff }

// Invalidator is the mechanism Map/Unmap delegate to for flushing a
// stale translation after a mapping change. Production code wires
// arch.Invlpg (see NewPageTable); tests wire a no-op, since INVLPG is a
// CPL-0-only instruction that only makes sense running on the
// freestanding target, the same seam sched.Machine gives the scheduler's
// context switch.
type Invalidator func(vaddr uint64)

// PageTable walks and mutates a single four-level PML4 tree, grounded on
// biscuit's pmap_pgtbl/ _pmap_walk in common/pmap.go. It never frees
// intermediate tables itself — this prototype, like biscuit's, only
// tears a whole address space down at process exit, which is outside
// this core's scope.
type PageTable struct {
	mem        *Memory
	pool       *FramePool
	root       Pa
	invalidate Invalidator
}

// NewPageTable allocates and zeroes a fresh PML4 root from pool, wired
// to the real arch.Invlpg mechanism.
func NewPageTable(mem *Memory, pool *FramePool) (*PageTable, defs.Err_t) {
	return NewPageTableWithInvalidator(mem, pool, arch.Invlpg)
}

// NewPageTableWithInvalidator is NewPageTable with an explicit
// invalidation mechanism, letting tests substitute a no-op for the
// privileged INVLPG instruction while exercising the real walk/map/
// unmap policy above it.
func NewPageTableWithInvalidator(mem *Memory, pool *FramePool, invalidate Invalidator) (*PageTable, defs.Err_t) {
	root, err := pool.Alloc()
	if err != defs.OK {
		return nil, err
	}
	mem.ZeroPage(root)
	return &PageTable{mem: mem, pool: pool, root: root, invalidate: invalidate}, defs.OK
}

// Root returns the physical address to load into CR3 for this tree.
func (pt *PageTable) Root() Pa { return pt.root }

// walk returns the physical address of the leaf PTE slot for vaddr,
// lazily allocating intermediate tables when create is true. ok is false
// when create is false and some level is absent, or when create is true
// but frame allocation failed.
func (pt *PageTable) walk(vaddr uint64, create bool) (slot Pa, ok bool) {
	table := pt.root
	indices := []uint64{pml4Index(vaddr), pdptIndex(vaddr), pdIndex(vaddr)}
	for _, idx := range indices {
		entryAddr := table + Pa(idx*8)
		entry := pt.mem.ReadU64(entryAddr)
		if entry&PteP == 0 {
			if !create {
				return 0, false
			}
			np, err := pt.pool.Alloc()
			if err != defs.OK {
				return 0, false
			}
			pt.mem.ZeroPage(np)
			entry = uint64(np) | PteP | PteW | PteU
			pt.mem.WriteU64(entryAddr, entry)
		}
		table = Pa(entry & pteAddr)
	}
	leafIdx := ptIndex(vaddr)
	return table + Pa(leafIdx*8), true
}

// Lookup returns the leaf PTE value for vaddr without creating anything.
func (pt *PageTable) Lookup(vaddr uint64) (pte uint64, present bool) {
	slot, ok := pt.walk(vaddr, false)
	if !ok {
		return 0, false
	}
	pte = pt.mem.ReadU64(slot)
	return pte, pte&PteP != 0
}

// Map installs a leaf mapping vaddr -> paddr with the given permission
// bits, lazily allocating intermediate tables. Global is set for kernel
// (non-user) mappings since they need no
// per-address-space flush; No-Execute is left clear — this prototype maps
// only data and never marks a page executable-and-writable at once beyond
// what user code regions require, so NX is the platform's call, not the
// core's.
func (pt *PageTable) Map(vaddr uint64, paddr Pa, user, writable bool) defs.Err_t {
	slot, ok := pt.walk(vaddr, true)
	if !ok {
		return defs.Exhausted
	}
	flags := PteP
	if writable {
		flags |= PteW
	}
	if user {
		flags |= PteU
	} else {
		flags |= PteG
	}
	pt.mem.WriteU64(slot, uint64(paddr)|flags)
	// Invalidate any stale translation for vaddr rather than reloading the
	// whole of CR3 — TLB shootdown is unnecessary without SMP, but
	// per-page invalidation is cheaper than a full flush regardless.
	pt.invalidate(vaddr)
	return defs.OK
}

// Unmap clears the leaf PTE for vaddr. Silently returns if any
// intermediate table is absent.
func (pt *PageTable) Unmap(vaddr uint64) {
	slot, ok := pt.walk(vaddr, false)
	if !ok {
		return
	}
	pt.mem.WriteU64(slot, 0)
	pt.invalidate(vaddr)
}

// Translate resolves vaddr to its mapped physical frame base, or
// !ok when unmapped.
func (pt *PageTable) Translate(vaddr uint64) (paddr Pa, ok bool) {
	pte, present := pt.Lookup(vaddr)
	if !present {
		return 0, false
	}
	return Pa(pte & pteAddr), true
}
