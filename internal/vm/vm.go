// Package vm implements demand-paged virtual memory with LRU eviction. It
// is grounded on biscuit's fault-dispatch path (src/proc/proc.go's
// trap_proc PGFAULT case calling Vm.Pgfault) and its page-table plumbing
// (src/common/vm.go, src/common/pmap.go), simplified to a single dense
// descriptor set with a monotonic LRU ordinal in place of biscuit's
// per-VMA, COW-capable address space.
package vm

import (
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
	"github.com/shivanshudwivedi/Microkernel/internal/mem"
)

const (
	// UserBase and UserStackTop bound the legal user address range for
	// this prototype.
	UserBase     = 0x400000
	UserStackTop = 0x600000
)

// FrameDescriptor records one active virtual-to-physical mapping tracked
// for LRU purposes.
type FrameDescriptor struct {
	Vaddr      uint64
	Paddr      mem.Pa
	Dirty      bool
	Accessed   bool
	LastAccess uint64
}

// InUserRange reports whether vaddr falls in the legal demand-paged range.
func InUserRange(vaddr uint64) bool {
	return vaddr >= UserBase && vaddr < UserStackTop
}

// PanicFunc is called for the fatal conditions this package enumerates
// (fault outside the user range, nested exhaustion). It never returns;
// tests supply one that records the call instead of halting.
type PanicFunc func(format string, args ...any)

// Manager owns the frame pool, the dense set of live frame descriptors,
// and the page table they back. One Manager exists per address space in
// principle; this prototype, like biscuit's single-PML4-per-boot
// approach to its identity map, is constructed once for the whole system
// since this core targets a single user address space shape shared by all
// tasks' demand-paged region.
type Manager struct {
	pt      *mem.PageTable
	pool    *mem.FramePool
	memory  *mem.Memory
	descs   []FrameDescriptor
	ordinal uint64
	panic   PanicFunc
}

// NewManager constructs a VM manager over the given page table, frame
// pool, and physical memory, with capacity for at most
// defs.MaxPhysicalPages live descriptors.
func NewManager(pt *mem.PageTable, pool *mem.FramePool, memory *mem.Memory, panicFn PanicFunc) *Manager {
	return &Manager{
		pt:     pt,
		pool:   pool,
		memory: memory,
		descs:  make([]FrameDescriptor, 0, defs.MaxPhysicalPages),
		panic:  panicFn,
	}
}

func (m *Manager) tick() uint64 {
	m.ordinal++
	return m.ordinal
}

func (m *Manager) find(vaddr uint64) int {
	for i := range m.descs {
		if m.descs[i].Vaddr == vaddr {
			return i
		}
	}
	return -1
}

// Snapshot returns a read-only copy of the live descriptor set, for tests
// and diagnostics — grounded on biscuit's Physmem_t.Pgcount()
// read-only accounting idiom.
func (m *Manager) Snapshot() []FrameDescriptor {
	out := make([]FrameDescriptor, len(m.descs))
	copy(out, m.descs)
	return out
}

// Translate resolves vaddr via the page table.
func (m *Manager) Translate(vaddr uint64) (mem.Pa, bool) {
	return m.pt.Translate(vaddr)
}

// Map installs an explicit mapping, bypassing fault handling. Used by
// callers that already hold a frame (e.g. a kernel identity map) rather
// than going through Allocate.
func (m *Manager) Map(vaddr uint64, paddr mem.Pa, user, writable bool) defs.Err_t {
	return m.pt.Map(vaddr, paddr, user, writable)
}

// Unmap clears vaddr's mapping.
func (m *Manager) Unmap(vaddr uint64) {
	m.pt.Unmap(vaddr)
	if i := m.find(vaddr); i >= 0 {
		m.descs = append(m.descs[:i], m.descs[i+1:]...)
	}
}

// Allocate claims a frame for vaddr, zero-fills it, and maps it
// User+Writable+Present. Returns Exhausted if the descriptor set is
// already at MaxPhysicalPages.
func (m *Manager) Allocate(vaddr uint64) defs.Err_t {
	if len(m.descs) >= defs.MaxPhysicalPages {
		return defs.Exhausted
	}
	paddr, err := m.pool.Alloc()
	if err != defs.OK {
		return defs.Exhausted
	}
	m.memory.ZeroPage(paddr)
	if err := m.pt.Map(vaddr, paddr, true, true); err != defs.OK {
		return err
	}
	m.descs = append(m.descs, FrameDescriptor{
		Vaddr:      mem.PageAlignDown(vaddr),
		Paddr:      paddr,
		Dirty:      false,
		Accessed:   true,
		LastAccess: m.tick(),
	})
	return defs.OK
}

// EvictOne selects the descriptor with the smallest LastAccess ordinal,
// writes it back (a no-op in this prototype beyond marking it clean),
// unmaps it, and removes it from the dense descriptor set. The freed
// physical frame is not returned to any free list; this is an accepted
// prototype limitation bounded by the fixed workload size.
func (m *Manager) EvictOne() {
	if len(m.descs) == 0 {
		return
	}
	victim := 0
	for i := 1; i < len(m.descs); i++ {
		if m.descs[i].LastAccess < m.descs[victim].LastAccess {
			victim = i
		}
	}
	d := m.descs[victim]
	d.Dirty = false // writeback no-op in the prototype
	m.pt.Unmap(d.Vaddr)
	m.descs = append(m.descs[:victim], m.descs[victim+1:]...)
}

// HandlePageFault implements the fault-handling protocol. notPresent
// must be true; this prototype treats every other
// fault class on a user address (protection violations, write to a
// read-only page) identically to biscuit's proc.go: fatal, since
// this prototype carries no per-task kill path.
func (m *Manager) HandlePageFault(faultingAddr uint64, notPresent bool) {
	if !InUserRange(faultingAddr) {
		m.panic("page fault outside user range: %#x", faultingAddr)
		return
	}
	if !notPresent {
		m.panic("page fault with present page (protection violation): %#x", faultingAddr)
		return
	}

	page := mem.PageAlignDown(faultingAddr)

	if i := m.find(page); i >= 0 {
		m.descs[i].Accessed = true
		m.descs[i].LastAccess = m.tick()
		return
	}

	if err := m.Allocate(page); err == defs.OK {
		return
	}

	m.EvictOne()
	if err := m.Allocate(page); err != defs.OK {
		m.panic("frame pool exhausted after eviction for %#x", page)
	}
}

// Touch refreshes a descriptor's LRU ordinal for an explicit access that
// does not go through the fault path (e.g. a kernel-side copy into user
// memory that the caller has already verified is mapped).
func (m *Manager) Touch(vaddr uint64) {
	if i := m.find(mem.PageAlignDown(vaddr)); i >= 0 {
		m.descs[i].Accessed = true
		m.descs[i].LastAccess = m.tick()
	}
}
