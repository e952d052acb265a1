// Package sched implements the round-robin scheduler: ready queue,
// dispatch, and the create/yield/exit/block/unblock/preempt operations
// this core exposes through it. Grounded on biscuit's run()/trap_proc
// dispatch loop in src/proc/proc.go, redesigned away from
// goroutine-backed tasks (biscuit multiplexes real OS threads; this
// core multiplexes TCB slots across one hardware thread) and away from
// package-level globals: a *Scheduler value is constructed once by
// cmd/kernel and threaded through internal/trap.
package sched

import (
	"github.com/shivanshudwivedi/Microkernel/internal/arch"
	"github.com/shivanshudwivedi/Microkernel/internal/circbuf"
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
	"github.com/shivanshudwivedi/Microkernel/internal/task"
)

// EntryFunc is a task's starting instruction pointer, expressed as a
// virtual address within the user range the ELF loader (excluded from
// this repository) has already mapped.
type EntryFunc = uint64

// Machine is the mechanism dispatch delegates to for the three hardware
// operations a switch touches: saving/restoring register state, loading
// an address-space root, and idling until the next interrupt. Production
// code wires arch.Switch/arch.WriteCR3/arch.WaitForInterrupt (see New);
// tests wire fakes, since the real mechanism only makes sense running on
// the freestanding target. This is the single well-typed entry
// context-switch policy sits above.
type Machine struct {
	Switch            func(oldrsp *uint64, newrsp uint64)
	WriteCR3          func(root uint64)
	WaitForInterrupt  func()
}

// Scheduler owns the task table and the ready queue. current is -1 when
// no task is running: before the first Preempt/Yield after boot, and
// whenever dispatch finds nothing runnable and idles. addressSpaceRoot is the single shared PML4
// physical base every task's Ctx.PageTableRoot is initialized to:
// vm.Manager targets one user address-space shape shared by every task,
// and this core has no notion of per-task address spaces, so CreateTask
// never needs a caller-supplied root.
type Scheduler struct {
	tasks            *task.Table
	ready            *circbuf.Ring[int] // slot indices
	current          int
	addressSpaceRoot uint64
	machine          Machine
}

// New constructs a Scheduler over tasks, with an empty ready queue of
// capacity defs.MaxTasks, wired to the real arch.Switch/WriteCR3/
// WaitForInterrupt mechanism. root is the physical base of the shared
// page table every created task runs against.
func New(tasks *task.Table, root uint64) *Scheduler {
	return NewWithMachine(tasks, root, Machine{
		Switch:           arch.Switch,
		WriteCR3:         arch.WriteCR3,
		WaitForInterrupt: arch.WaitForInterrupt,
	})
}

// NewWithMachine constructs a Scheduler over an explicit Machine,
// letting tests substitute fakes for the hardware-touching mechanism
// while exercising the real ready-queue/state-machine policy above it.
func NewWithMachine(tasks *task.Table, root uint64, m Machine) *Scheduler {
	return &Scheduler{
		tasks:            tasks,
		ready:            circbuf.NewRing[int](defs.MaxTasks),
		current:          -1,
		addressSpaceRoot: root,
		machine:          m,
	}
}

// Current returns the currently Running TCB, or nil if none (CPU idle).
func (s *Scheduler) Current() *task.TCB {
	if s.current < 0 {
		return nil
	}
	return s.tasks.Get(s.current)
}

// CurrentSlot returns the slot index of the Running task, or -1.
func (s *Scheduler) CurrentSlot() int { return s.current }

// CreateTask allocates a TCB, preconstructs its initial machine
// context, and enqueues it Ready. userStackTop is the top of the
// task's 16KiB user stack.
func (s *Scheduler) CreateTask(name string, entry EntryFunc, priority int, userStackTop uint64) (defs.Pid_t, defs.Err_t) {
	slot, ok := s.tasks.Alloc(name)
	if !ok {
		return 0, defs.NoSlot
	}
	tcb := s.tasks.Get(slot)
	tcb.Priority = priority
	tcb.InitStack(entry, userStackTop)
	tcb.Ctx.PageTableRoot = s.addressSpaceRoot
	if !s.ready.PushBack(slot) {
		// MaxTasks bounds both the table and the ready queue identically,
		// so a freshly allocated slot can never find the ready queue full.
		panic("sched: ready queue full immediately after task create")
	}
	return tcb.Pid, defs.OK
}

// dispatch pops the head of the ready queue, marks it Running, switches
// address space if needed, and context-switches into it from `from`
// (which may be -1 if the CPU was idle). It does not return until the
// incoming task itself yields, blocks, exits, or is preempted.
func (s *Scheduler) dispatch(from int) {
	slot, ok := s.ready.PopFront()
	if !ok {
		if from >= 0 && s.tasks.Get(from).State == task.Running {
			// Ready queue empty, current task still Running -> it simply
			// continues.
			return
		}
		s.current = -1
		s.machine.WaitForInterrupt()
		return
	}

	next := s.tasks.Get(slot)
	if next.State != task.Ready {
		panic("sched: dispatched task not in Ready state")
	}
	next.State = task.Running
	s.current = slot

	if from < 0 {
		s.machine.WriteCR3(next.Ctx.PageTableRoot)
		var discard uint64
		s.machine.Switch(&discard, next.Ctx.RSP)
		return
	}

	outgoing := s.tasks.Get(from)
	if outgoing.Ctx.PageTableRoot != next.Ctx.PageTableRoot {
		s.machine.WriteCR3(next.Ctx.PageTableRoot)
	}
	s.machine.Switch(&outgoing.Ctx.RSP, next.Ctx.RSP)
}

// reenqueueOutgoing demotes the outgoing Running task to Ready and
// enqueues it at the tail: if the outgoing task is in Running state it
// is demoted to Ready and enqueued at the tail before the switch.
func (s *Scheduler) reenqueueOutgoing(slot int) {
	if slot < 0 {
		return
	}
	t := s.tasks.Get(slot)
	if t.State != task.Running {
		return
	}
	t.State = task.Ready
	if !s.ready.PushBack(slot) {
		panic("sched: ready queue full on re-enqueue")
	}
}

// Yield demotes the current task to Ready and dispatches the next one —
// the scheduler's basic yield primitive.
func (s *Scheduler) Yield() {
	from := s.current
	s.reenqueueOutgoing(from)
	s.dispatch(from)
}

// Preempt is the timer IRQ's entry point: identical to Yield for the
// current Running task, callable from interrupt context. EOI is the
// caller's responsibility (internal/trap), which always sends EOI to
// the PIC before invoking the scheduler's preemption entry.
func (s *Scheduler) Preempt() {
	s.Yield()
}

// Exit marks the current task Zombie, frees its slot, and dispatches
// the next task. If no task was current, NoCurrentTask is returned
// rather than panicking, since a stray EXIT syscall with no current
// task indicates caller error, not a kernel invariant violation.
func (s *Scheduler) Exit(code int) defs.Err_t {
	from := s.current
	if from < 0 {
		return defs.NoCurrentTask
	}
	s.tasks.Free(from)
	s.current = -1
	s.dispatch(from)
	return defs.OK
}

// BlockCurrent transitions the current task to Blocked and dispatches
// the next one. The caller (internal/ipc) is responsible for having
// already added the task to the blocked list before calling this, so
// the invariant "a Blocked task must appear in exactly one wait set"
// never has a gap.
func (s *Scheduler) BlockCurrent() defs.Err_t {
	from := s.current
	if from < 0 {
		return defs.NoCurrentTask
	}
	s.tasks.Get(from).State = task.Blocked
	s.current = -1
	s.dispatch(from)
	return defs.OK
}

// Unblock transitions slot from Blocked to Ready and enqueues it at the
// tail of the ready queue. It does not itself switch; preemption
// remains timer-driven, since Send never performs an immediate context
// switch on delivery.
func (s *Scheduler) Unblock(slot int) {
	t := s.tasks.Get(slot)
	if t.State != task.Blocked {
		panic("sched: unblock of a task that is not Blocked")
	}
	t.State = task.Ready
	if !s.ready.PushBack(slot) {
		panic("sched: ready queue full on unblock")
	}
}

// ReadyLen exposes the ready queue's occupancy for tests and diagnostics.
func (s *Scheduler) ReadyLen() int { return s.ready.Len() }
