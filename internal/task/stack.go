package task

import (
	"reflect"
	"unsafe"

	"github.com/shivanshudwivedi/Microkernel/internal/arch"
)

// kstackWords sizes each task's private kernel stack: enough for the
// deepest interrupt-handler call chain this prototype's single-level
// dispatch ever builds, with headroom. Grounded on this core's 16KiB
// user stack size, reused here since there is no reason to size kernel
// and user stacks differently at this scale.
const kstackWords = 2048

// kstack is the per-task kernel-mode stack context switches run on. It is
// a fixed-size array embedded in the TCB (not heap-allocated) so its
// address is stable for the lifetime of the slot, matching the TCB's
// base-address-and-size stack fields.
type kstack struct {
	words [kstackWords]uint64
}

// NewStack preconstructs slot's kernel stack so that the first Switch into
// it lands at entry in user mode with a clean register file, the given
// user stack pointer, and flags = interrupts-enabled/IOPL-0, the
// contract create_task relies on. It returns the initial Ctx.RSP to
// store in the TCB.
func NewStack(ks *kstack, entry, userStackTop uint64) uint64 {
	top := unsafe.Add(unsafe.Pointer(&ks.words[kstackWords-1]), 8)

	trampoline := uint64(reflect.ValueOf(arch.IretTrampoline).Pointer())

	// Build top-down: IRETQ frame first (highest addresses), then the
	// Switch-symmetric callee-saved frame right below it.
	push := func(sp unsafe.Pointer, v uint64) unsafe.Pointer {
		sp = unsafe.Add(sp, -8)
		*(*uint64)(sp) = v
		return sp
	}

	sp := top
	sp = push(sp, uint64(arch.SelUserData))   // SS
	sp = push(sp, userStackTop)               // RSP
	sp = push(sp, arch.RflagsUser)            // RFLAGS
	sp = push(sp, uint64(arch.SelUserCode))   // CS
	sp = push(sp, entry)                      // RIP
	sp = push(sp, trampoline)                 // Switch's RET target
	sp = push(sp, arch.RflagsUser)            // POPFQ
	sp = push(sp, 0) // RBP
	sp = push(sp, 0) // RBX
	sp = push(sp, 0) // R12
	sp = push(sp, 0) // R13
	sp = push(sp, 0) // R14
	sp = push(sp, 0) // R15

	return uint64(uintptr(sp))
}
