// Package apic drives the legacy 8259 PIC and the 8254 PIT, grounded on
// biscuit's apic_t (src/apic/apic.go): same port-I/O style
// (runtime.Outb there, internal/arch.Outb here) and the same
// "enter/leave symmetric mode via the IMCR" idea, but aimed the opposite
// direction — biscuit's apic_init *disables* the 8259 in favor of the
// IOAPIC/local APIC; this core targets a single hardware thread
// with no IOAPIC, so this package programs the 8259 directly instead of
// replacing it (see DESIGN.md for why biscuit's acpi/ioapic.go was
// dropped rather than adapted).
package apic

import "github.com/shivanshudwivedi/Microkernel/internal/arch"

// 8259 PIC I/O ports and command bytes, and the 8254 PIT's channel-0 and
// mode/command ports — standard AT-compatible addresses, unchanged since
// biscuit's era of PC/AT hardware the IOAPIC superseded.
const (
	picMasterCmd  = 0x20
	picMasterData = 0x21
	picSlaveCmd   = 0xa0
	picSlaveData  = 0xa1

	icw1Init = 0x11 // ICW4 present, cascade mode, edge-triggered
	icw4_8086 = 0x01

	eoiCmd = 0x20

	pitChannel0 = 0x40
	pitCommand  = 0x43
	pitMode3    = 0x36 // channel 0, lobyte/hibyte, square wave, binary

	// pitFrequency is the PIT's fixed input clock, in Hz.
	pitFrequency = 1193182
)

// vectorOffset is where this core remaps the master PIC's eight
// IRQ lines, clear of the CPU's own exception vectors 0x00-0x1f.
const vectorOffset = 0x20

// Init remaps the 8259 pair so IRQ0-7 land on vectors 0x20-0x27 and
// IRQ8-15 on 0x28-0x2f, then masks every line except IRQ0 (the timer) —
// the timer is the only interrupt source this core depends on.
// Grounded on biscuit's apic_init ICW dance, adapted
// from IOAPIC redirection-table writes to the 8259's four-ICW
// initialization sequence.
func Init() {
	arch.Outb(picMasterCmd, icw1Init)
	arch.Outb(picSlaveCmd, icw1Init)

	arch.Outb(picMasterData, vectorOffset)      // ICW2: master base vector
	arch.Outb(picSlaveData, vectorOffset+8)     // ICW2: slave base vector

	arch.Outb(picMasterData, 1<<2) // ICW3: slave attached to master IRQ2
	arch.Outb(picSlaveData, 2)     // ICW3: slave's cascade identity

	arch.Outb(picMasterData, icw4_8086)
	arch.Outb(picSlaveData, icw4_8086)

	// mask everything except IRQ0
	arch.Outb(picMasterData, 0xfe)
	arch.Outb(picSlaveData, 0xff)
}

// EOI acknowledges an in-service interrupt so the PIC will deliver the
// next one. irq is the 0-based IRQ line, not the remapped vector number.
// The handler sends EOI to the PIC, then invokes the scheduler's
// preemption entry — EOI always precedes Preempt so a
// second timer tick can be latched while the first is still being
// serviced.
func EOI(irq int) {
	if irq >= 8 {
		arch.Outb(picSlaveCmd, eoiCmd)
	}
	arch.Outb(picMasterCmd, eoiCmd)
}

// ProgramTimer configures PIT channel 0 for periodic mode-3 square-wave
// output at hz, the quantum frequency this core fixes at 100Hz.
// divisor truncates rather than rounds, matching the PIT's own integer
// counter.
func ProgramTimer(hz int) {
	divisor := uint16(pitFrequency / hz)
	arch.Outb(pitCommand, pitMode3)
	arch.Outb(pitChannel0, uint8(divisor&0xff))
	arch.Outb(pitChannel0, uint8(divisor>>8))
}
