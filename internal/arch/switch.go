package arch

// Switch saves the callee-saved registers and flags of the currently
// executing stack onto that stack, writes the resulting stack pointer to
// *oldrsp, then loads newrsp and restores the symmetric register set
// before returning — onto whatever instruction follows the matching Switch
// call that originally parked the incoming task's stack.
//
// This is the single well-typed entry every policy decision (who runs
// next, whether to reload CR3) sits above: Switch only ever moves
// register state between stacks, and internal/sched owns all of that
// policy.
//
// A freshly created task's stack is preconstructed by internal/task so
// that the first Switch into it "returns" into a small trampoline that
// calls the task's entry point (see task.NewStack).
func Switch(oldrsp *uint64, newrsp uint64)
