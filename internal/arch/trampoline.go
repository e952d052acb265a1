package arch

// IretTrampoline is the landing point for the very first Switch into a
// freshly created task. task.NewStack leaves its address as the return
// address atop the new task's stack, below a preconstructed IRETQ frame
// (RIP, CS, RFLAGS, RSP, SS). IretTrampoline's only job is to execute that
// IRETQ, dropping to user mode at the task's entry point with RSP set to
// the user stack top carried in the preconstructed return frame
// task.NewStack built.
func IretTrampoline()
