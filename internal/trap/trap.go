// Package trap is the syscall/IRQ dispatch glue: it decodes the raw
// trapframe into an arch.Frame, masks interrupts for the duration of the
// handler, and routes by vector or syscall number into internal/sched,
// internal/ipc, and internal/vm.
// Grounded on biscuit's Proc_t.trap_proc (src/proc/proc.go): same
// switch-on-vector shape, same "copy return value into TF_RAX" syscall
// convention, redesigned around this core's fixed vector/syscall switch instead
// of trap_proc's thread/resource-accounting machinery (irrelevant without
// goroutine-backed tasks or biscuit's res/bounds packages).
package trap

import (
	"fmt"

	"github.com/shivanshudwivedi/Microkernel/internal/apic"
	"github.com/shivanshudwivedi/Microkernel/internal/arch"
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
	"github.com/shivanshudwivedi/Microkernel/internal/ipc"
	"github.com/shivanshudwivedi/Microkernel/internal/klog"
	"github.com/shivanshudwivedi/Microkernel/internal/mem"
	"github.com/shivanshudwivedi/Microkernel/internal/sched"
	"github.com/shivanshudwivedi/Microkernel/internal/task"
	"github.com/shivanshudwivedi/Microkernel/internal/vm"
)

// UserCopy reads/writes the simulated physical memory on behalf of a
// syscall argument that is itself a user virtual address. The core
// validates every such address against the issuing task's mapped range
// before dereferencing it: user memory the kernel touches is always
// validated before any dereference.
type UserCopy struct {
	vm     *vm.Manager
	memory *mem.Memory
}

// NewUserCopy constructs a UserCopy over the given VM manager and backing
// physical memory.
func NewUserCopy(v *vm.Manager, m *mem.Memory) *UserCopy {
	return &UserCopy{vm: v, memory: m}
}

// ReadUser copies up to n bytes starting at the user virtual address
// uaddr, failing with Unmapped if uaddr's page has no translation. It
// reads only uaddr's own page: bytes past the end of that page are not
// copied, so the result is shorter than n when the range crosses a page.
func (u *UserCopy) ReadUser(uaddr uint64, n int) ([]byte, defs.Err_t) {
	paddr, ok := u.vm.Translate(uaddr)
	if !ok {
		return nil, defs.Unmapped
	}
	u.vm.Touch(uaddr)
	off := uint64(uaddr) - uint64(mem.PageAlignDown(uaddr))
	page := u.memory.ReadPage(paddr)
	end := int(off) + n
	if end > len(page) {
		end = len(page)
	}
	out := make([]byte, end-int(off))
	copy(out, page[off:end])
	return out, defs.OK
}

// WriteUser copies data into the user virtual address uaddr. It writes
// only uaddr's own page: bytes of data that would land past the end of
// that page are dropped.
func (u *UserCopy) WriteUser(uaddr uint64, data []byte) defs.Err_t {
	paddr, ok := u.vm.Translate(uaddr)
	if !ok {
		return defs.Unmapped
	}
	u.vm.Touch(uaddr)
	page := u.memory.ReadPage(paddr)
	off := uint64(uaddr) - uint64(mem.PageAlignDown(uaddr))
	n := copy(page[off:], data)
	_ = n
	u.memory.WritePage(paddr, page)
	return defs.OK
}

// Stats counts trap occurrences by category, grounded on biscuit's
// src/stats package (dropped wholesale — see DESIGN.md — since its scope
// was per-syscall latency histograms, out of reach without a cycle
// counter; a flat per-vector tally is the part worth keeping).
type Stats struct {
	TimerTicks   uint64
	Syscalls     [5]uint64 // indexed by syscall number, 0 unused
	PageFaults   uint64
	FatalTraps   uint64
	UnknownTraps uint64
}

// Mechanism is the set of privileged operations Handle delegates to:
// masking interrupts for the handler's duration, acknowledging the
// timer IRQ at the PIC, and reading the faulting address off CR2.
// Production code wires arch.Mask/apic.EOI/arch.ReadCR2 (see
// NewDispatcher); tests wire fakes, since CLI/STI, port I/O, and CR2
// access only make sense running on the freestanding target — the same
// seam sched.Machine gives the scheduler's context switch.
type Mechanism struct {
	Mask    func() arch.Guard
	EOI     func(irq int)
	ReadCR2 func() uint64
}

// Dispatcher wires a Scheduler, IPC Center, VM Manager, and user-copy
// path into the single entry point the (excluded) trap stub calls for
// every vector.
type Dispatcher struct {
	sched    *sched.Scheduler
	ipc      *ipc.Center
	vm       *vm.Manager
	copy     *UserCopy
	tasks    *task.Table
	log      *klog.Logger
	timerIRQ int
	halt     func()
	mech     Mechanism
	Stats    Stats
}

// NewDispatcher constructs a Dispatcher wired to the real arch.HaltSpin
// fatal-trap response and the real arch.Mask/apic.EOI/arch.ReadCR2
// mechanism. timerIRQ is the 0-based IRQ line the PIT is wired to (0 on
// this core).
func NewDispatcher(s *sched.Scheduler, c *ipc.Center, v *vm.Manager, t *task.Table, mm *mem.Memory, log *klog.Logger) *Dispatcher {
	return NewDispatcherWithHalt(s, c, v, t, mm, log, arch.HaltSpin)
}

// NewDispatcherWithHalt is NewDispatcher with an explicit fatal-trap
// response, letting tests substitute a fake that records the halt
// instead of spinning forever on a real CLI/HLT loop.
func NewDispatcherWithHalt(s *sched.Scheduler, c *ipc.Center, v *vm.Manager, t *task.Table, mm *mem.Memory, log *klog.Logger, halt func()) *Dispatcher {
	return NewDispatcherWithMechanism(s, c, v, t, mm, log, halt, Mechanism{
		Mask:    arch.Mask,
		EOI:     apic.EOI,
		ReadCR2: arch.ReadCR2,
	})
}

// NewDispatcherWithMechanism is NewDispatcherWithHalt with an explicit
// Mechanism, letting tests substitute fakes for the interrupt-mask/EOI/
// CR2 primitives while exercising the real vector-routing and syscall
// policy above them.
func NewDispatcherWithMechanism(s *sched.Scheduler, c *ipc.Center, v *vm.Manager, t *task.Table, mm *mem.Memory, log *klog.Logger, halt func(), mech Mechanism) *Dispatcher {
	return &Dispatcher{
		sched:    s,
		ipc:      c,
		vm:       v,
		copy:     NewUserCopy(v, mm),
		tasks:    t,
		log:      log,
		timerIRQ: 0,
		halt:     halt,
		mech:     mech,
	}
}

// panicf is the Dispatcher's own response to an unrecoverable trap: log,
// then halt. The VM manager gets its own callback from its constructor.
func (d *Dispatcher) panicf(format string, args ...any) {
	d.log.Fatal(fmt.Sprintf(format, args...))
	d.halt()
}

// Handle is the single entry point the trap stub calls with the decoded
// vector number and the raw trapframe, already laid out per
// defs.TFSize. Interrupts are masked for the handler's full duration,
// for the handler's full duration; handlers never re-enable them
// mid-mutation.
func (d *Dispatcher) Handle(vector int, raw *[defs.TFSize]uint64) {
	guard := d.mech.Mask()
	defer guard.Release()

	f := arch.NewFrame(raw)

	switch {
	case vector == defs.Syscall:
		d.syscall(f)

	case vector == defs.IRQBase+d.timerIRQ:
		d.Stats.TimerTicks++
		d.mech.EOI(d.timerIRQ)
		d.sched.Preempt()

	case vector == defs.PageFault:
		d.Stats.PageFaults++
		faultAddr := d.mech.ReadCR2()
		notPresent := f.ErrorCode()&1 == 0
		d.vm.HandlePageFault(faultAddr, notPresent)

	case vector == defs.DivZero || vector == defs.GPFault || vector == defs.UD:
		d.Stats.FatalTraps++
		d.panicf("fatal trap %#x at rip %#x", vector, f.Rip())

	default:
		d.Stats.UnknownTraps++
		d.panicf("unknown trap vector %#x", vector)
	}
}

// syscall decodes and routes a software-interrupt or SYSCALL-instruction
// trap by syscall number, writing the ABI return value
// (non-negative on success, negative Err_t otherwise) back into the
// frame's result register.
func (d *Dispatcher) syscall(f *arch.Frame) {
	cur := d.sched.Current()
	if cur == nil {
		f.SetReturn(defs.NoCurrentTask.Negative())
		return
	}
	self := cur.Pid

	no := f.SyscallNo()
	if no >= 1 && int(no) < len(d.Stats.Syscalls) {
		d.Stats.Syscalls[no]++
	}

	switch no {
	case defs.SysSend:
		dst := defs.Pid_t(f.Arg1())
		uaddr := uint64(f.Arg2())
		length := int(f.Arg3())
		d.sysSend(f, self, dst, uaddr, length)

	case defs.SysRecv:
		uaddr := uint64(f.Arg1())
		capacity := int(f.Arg2())
		d.sysRecv(f, self, uaddr, capacity)

	case defs.SysYield:
		d.sched.Yield()
		f.SetReturn(0)

	case defs.SysExit:
		d.sched.Exit(int(f.Arg1()))
		// Exit only returns to here if there was no current task; a
		// successful exit never resumes this frame.

	default:
		d.panicf("unknown syscall number %d", no)
	}
}

func (d *Dispatcher) sysSend(f *arch.Frame, self, dst defs.Pid_t, uaddr uint64, length int) {
	if length < 0 || length > defs.MaxMessageSize {
		f.SetReturn(defs.InvalidLength.Negative())
		return
	}
	payload, err := d.copy.ReadUser(uaddr, length)
	if err != defs.OK {
		f.SetReturn(err.Negative())
		return
	}
	if err := d.ipc.Send(self, dst, payload); err != defs.OK {
		f.SetReturn(err.Negative())
		return
	}
	f.SetReturn(int64(length))
}

func (d *Dispatcher) sysRecv(f *arch.Frame, self defs.Pid_t, uaddr uint64, capacity int) {
	m, err := d.ipc.Recv(self)
	if err != defs.OK {
		f.SetReturn(err.Negative())
		return
	}
	n := m.Len
	if n > capacity {
		n = capacity
	}
	if err := d.copy.WriteUser(uaddr, m.Payload[:n]); err != defs.OK {
		f.SetReturn(err.Negative())
		return
	}
	f.SetReturn(int64(n))
}
