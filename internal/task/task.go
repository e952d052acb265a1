// Package task holds the Task Control Block and the fixed-capacity task
// table, grounded on biscuit's Proc_t (src/proc/proc.go) and ptable_t,
// simplified by resolving cyclic references through storing TCBs in a
// fixed array and referencing them by slot index: the scheduler and IPC
// packages each hold slot indices, never pointers into this table
// directly, and the table itself is a plain array rather than
// biscuit's concurrent hashtable (unneeded at MaxTasks == 8, and
// contrary to the single-hardware-thread model — see DESIGN.md).
package task

import "github.com/shivanshudwivedi/Microkernel/internal/defs"

// State is a task's lifecycle state.
type State int

const (
	Zombie State = iota
	Ready
	Running
	Blocked
)

func (s State) String() string {
	switch s {
	case Zombie:
		return "zombie"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Context holds the machine state a context switch moves between stacks.
// RSP is the only field the scheduler reads or writes directly; the rest
// of the register file lives on the task's own stack between switches,
// the context-switch contract every Machine implementation honors.
type Context struct {
	RSP       uint64
	PageTableRoot uint64
}

// TCB is one Task Control Block slot.
type TCB struct {
	Pid       defs.Pid_t
	Name      string
	Priority  int // reserved, unused by the round-robin policy
	State     State
	Ctx       Context
	StackBase uint64
	StackSize uint64

	ks kstack
}

// InitStack preconstructs t's kernel stack so the first scheduler switch
// into it lands at entry in user mode. userStackTop is the initial user
// RSP.
func (t *TCB) InitStack(entry, userStackTop uint64) {
	t.Ctx.RSP = NewStack(&t.ks, entry, userStackTop)
	t.StackBase = userStackTop - UserStackSize
	t.StackSize = UserStackSize
}

// UserStackSize is the fixed per-task user stack size.
const UserStackSize = 16 * 1024

// Table is a fixed-size array of MaxTasks slots. Slot i's TCB.Pid is 0
// exactly when the slot has never been used; otherwise a Zombie slot is
// free for reuse and retains its last Pid until reissued.
type Table struct {
	slots   [defs.MaxTasks]TCB
	nextPid defs.Pid_t
}

// NewTable constructs an all-Zombie task table.
func NewTable() *Table {
	t := &Table{nextPid: 1}
	for i := range t.slots {
		t.slots[i].State = Zombie
	}
	return t
}

// Get returns the TCB at slot, by reference so callers can mutate state
// in place.
func (t *Table) Get(slot int) *TCB { return &t.slots[slot] }

// Len returns the table's fixed capacity.
func (t *Table) Len() int { return len(t.slots) }

// FindByPid returns the slot index owning pid, or -1. A Zombie slot's
// stale Pid never matches since callers only ever look up Ready, Running,
// or Blocked tasks by Pid.
func (t *Table) FindByPid(pid defs.Pid_t) int {
	for i := range t.slots {
		if t.slots[i].State != Zombie && t.slots[i].Pid == pid {
			return i
		}
	}
	return -1
}

// Alloc finds a Zombie slot, assigns it the next PID, and returns its
// index. ok is false when no slot is free.
func (t *Table) Alloc(name string) (slot int, ok bool) {
	for i := range t.slots {
		if t.slots[i].State == Zombie {
			if len(name) > defs.NameMaxLen {
				name = name[:defs.NameMaxLen]
			}
			pid := t.nextPid
			t.nextPid++
			t.slots[i] = TCB{
				Pid:   pid,
				Name:  name,
				State: Ready,
			}
			return i, true
		}
	}
	return -1, false
}

// Free marks slot Zombie, releasing it for reuse. The PID is never
// reissued to a different slot later: slots are reused, PIDs are not.
func (t *Table) Free(slot int) {
	t.slots[slot].State = Zombie
}
