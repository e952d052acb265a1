package arch

// Platform is the interface the boot trampoline, GDT/IDT bring-up, and
// diagnostic text output expose to the core — external collaborators this
// repository specifies only at the interfaces they expose to the core.
// cmd/kernel's New receives a concrete Platform from its caller; nothing
// under internal/ imports one.
type Platform interface {
	// WriteDiagnostic emits a line to whatever text-mode sink the platform
	// owns (serial console, 0xB8000 framebuffer, or a test buffer).
	WriteDiagnostic(line string)
}

// HaltSpin disables interrupts and spins on HLT forever — the terminal
// state for a kernel panic.
func HaltSpin() {
	Cli()
	for {
		Hlt()
	}
}

// WaitForInterrupt enables interrupts and halts until the next one
// arrives — the scheduler's idle path when the ready queue is empty and
// the outgoing task is no longer runnable. STI
// followed immediately by HLT is architecturally atomic: the interrupt
// flag takes effect only once HLT has begun waiting, so no interrupt can
// be lost between the two instructions.
func WaitForInterrupt() {
	Sti()
	Hlt()
}
