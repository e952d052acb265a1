// Command kernel wires the subsystems together at boot, grounded on
// biscuit's root main.go: install the trap handler,
// bring up the fixed set of subsystems, then fall into the idle loop —
// redesigned around explicit constructors instead of package-level
// state, since this core has no runtime.Install_traphandler to hand a
// raw function pointer to (that hook belongs to the excluded boot
// trampoline/IDT bring-up layer).
package main

import (
	"fmt"
	"log/slog"

	"github.com/shivanshudwivedi/Microkernel/internal/apic"
	"github.com/shivanshudwivedi/Microkernel/internal/arch"
	"github.com/shivanshudwivedi/Microkernel/internal/defs"
	"github.com/shivanshudwivedi/Microkernel/internal/ipc"
	"github.com/shivanshudwivedi/Microkernel/internal/kconfig"
	"github.com/shivanshudwivedi/Microkernel/internal/klog"
	"github.com/shivanshudwivedi/Microkernel/internal/mem"
	"github.com/shivanshudwivedi/Microkernel/internal/sched"
	"github.com/shivanshudwivedi/Microkernel/internal/task"
	"github.com/shivanshudwivedi/Microkernel/internal/trap"
	"github.com/shivanshudwivedi/Microkernel/internal/vm"
)

// Kernel bundles every subsystem kernel_main constructs, so tests and the
// eventual boot trampoline can reach into it without a package global.
type Kernel struct {
	Config kconfig.Config
	Log    *klog.Logger

	Memory *mem.Memory
	Pool   *mem.FramePool
	Tables *task.Table

	VM    *vm.Manager
	Sched *sched.Scheduler
	IPC   *ipc.Center
	Trap  *trap.Dispatcher
}

// New constructs every subsystem from cfg without starting the idle
// loop, the shape tests exercise directly. platform supplies the
// diagnostic sink (the text-output device is excluded from this repository).
func New(cfg kconfig.Config, platform arch.Platform) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := klog.New(platform, slog.LevelInfo)

	physBytes := cfg.MaxPhysicalPages * mem.PGSize
	memory := mem.NewMemory(mem.Pa(cfg.KernelStackTop), physBytes)
	pool := mem.NewFramePool(mem.Pa(cfg.KernelStackTop), cfg.MaxPhysicalPages)

	pt, err := mem.NewPageTable(memory, pool)
	if err != defs.OK {
		return nil, fmt.Errorf("mem.NewPageTable: %v", err)
	}

	tasks := task.NewTable()
	s := sched.New(tasks, uint64(pt.Root()))
	c := ipc.New(tasks, s)

	k := &Kernel{
		Config: cfg,
		Log:    log,
		Memory: memory,
		Pool:   pool,
		Tables: tasks,
	}
	k.VM = vm.NewManager(pt, pool, memory, k.panicf)
	k.Sched = s
	k.IPC = c
	k.Trap = trap.NewDispatcher(s, c, k.VM, tasks, memory, log)

	return k, nil
}

// panicf is the VM manager's fatal-condition callback:
// log, then halt. Kept on Kernel rather than trap.Dispatcher's copy so
// vm.Manager and trap.Dispatcher can be constructed independently in
// tests without duplicating the halt policy.
func (k *Kernel) panicf(format string, args ...any) {
	k.Log.Fatal(fmt.Sprintf(format, args...))
	arch.HaltSpin()
}

// Boot programs the 8259/PIT and enters the scheduler's idle wait,
// mirroring biscuit main.go's runtime.Cli()/Install_traphandler sequence:
// mask everything, install the handler surface, then run.  Boot never
// returns; the caller (the excluded boot trampoline) owns process exit,
// which this prototype does not have.
func (k *Kernel) Boot() {
	arch.Cli()
	apic.Init()
	apic.ProgramTimer(k.Config.TimerHz)
	k.Log.Event("boot", 0, "max_tasks", k.Config.MaxTasks, "timer_hz", k.Config.TimerHz)
	for {
		arch.WaitForInterrupt()
	}
}

// HandleTrap is the single symbol the (excluded) assembly trap stub
// calls for every vector, after pushing the raw trapframe.
func (k *Kernel) HandleTrap(vector int, raw *[defs.TFSize]uint64) {
	k.Trap.Handle(vector, raw)
}

func main() {
	// Entry symbol kernel_main is this binary's
	// _start, reached only after the excluded boot trampoline has put the
	// CPU in 64-bit long mode with a minimal GDT and interrupts disabled.
	// There is no host `go run` path for a freestanding kernel image; this
	// func exists so `cmd/kernel` is a buildable command per Go
	// convention; its body is empty.
}
