// Package arch isolates every operation that cannot be expressed in plain
// Go: port I/O, control-register access, and the register-save/restore half
// of a context switch. Everything above this package is ordinary Go; below
// it is a handful of amd64 instructions in arch_amd64.s, grounded on
// biscuit's runtime.Outb/Inb/Lcr3 split between policy (common/pmap.go,
// apic/apic.go) and mechanism (src/runtime/os_linux.go).
//
// The boot trampoline (GDT/IDT bring-up, long-mode entry), excluded from
// this repository, is assumed to have already run by the time any
// function here is called; kernel_main receives control with interrupts
// disabled and a minimal GDT loaded.
package arch

// Outb writes a byte to an I/O port.
func Outb(port uint16, val uint8)

// Inb reads a byte from an I/O port.
func Inb(port uint16) uint8

// Cli clears the interrupt flag, disabling maskable interrupts.
func Cli()

// Sti sets the interrupt flag, enabling maskable interrupts.
func Sti()

// Hlt halts the CPU until the next interrupt.
func Hlt()

// ReadCR2 returns the faulting address latched by the last page fault.
func ReadCR2() uint64

// ReadCR3 returns the current page-table root (physical address).
func ReadCR3() uint64

// WriteCR3 loads a new page-table root, flushing all non-global TLB
// entries. Also used with its own current value to flush a single stale
// translation when per-page invalidation is unavailable.
func WriteCR3(root uint64)

// Invlpg invalidates the TLB entry for a single page, when the
// architecture offers a cheaper alternative to a full CR3 reload.
func Invlpg(vaddr uint64)

// ReadFlags returns the current RFLAGS register.
func ReadFlags() uint64

// FlagsIF reports whether bit 9 (IF) is set in a saved RFLAGS value.
func FlagsIF(rflags uint64) bool {
	const ifBit = 1 << 9
	return rflags&ifBit != 0
}
