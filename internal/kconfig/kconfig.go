// Package kconfig holds the kernel's boot-time tunables, validated once
// at kernel_main and passed explicitly to every subsystem constructor
// rather than held in a package global — grounded on biscuit's
// src/limits (Syslimit), a single validated-at-boot limits record, but
// redesigned against ad-hoc globals: Config is a plain value, not a
// package-level singleton.
package kconfig

import (
	"fmt"

	"github.com/shivanshudwivedi/Microkernel/internal/defs"
)

// Config bundles every size/frequency constant a booting kernel needs to
// size its subsystems, mirroring the fixed prototype constants this core
// targets while leaving room for a future boot-arg source — outside this
// core's scope, since the kernel accepts no command-line arguments.
type Config struct {
	MaxTasks         int
	MaxIPCMessages   int
	MaxMessageSize   int
	MaxPhysicalPages int
	TimerHz          int

	KernelBase     uint64
	KernelStackTop uint64
	UserBase       uint64
	UserStackTop   uint64
	UserStackSize  uint64
}

// Default returns the prototype configuration this core fixes:
// MAX_TASKS=8, MAX_IPC_MESSAGES=32, MAX_MESSAGE_SIZE=256,
// MAX_PHYSICAL_PAGES=1024, 100Hz timer, and the [0x400000, 0x600000)
// user range with a 16KiB stack.
func Default() Config {
	return Config{
		MaxTasks:         8,
		MaxIPCMessages:   32,
		MaxMessageSize:   256,
		MaxPhysicalPages: 1024,
		TimerHz:          100,

		KernelBase:     0x100000,
		KernelStackTop: 0x200000,
		UserBase:       0x400000,
		UserStackTop:   0x600000,
		UserStackSize:  16 * 1024,
	}
}

// Validate checks the invariants kernel_main relies on before
// constructing any subsystem: every bound positive, the user range
// non-empty and stack-sized within it, and the timer frequency evenly
// dividing the PIT's input clock cleanly enough to not round to zero.
func (c Config) Validate() error {
	// MaxTasks, MaxIPCMessages, MaxMessageSize, and MaxPhysicalPages size
	// fixed-capacity arrays (task.Table, per-task mailboxes, the frame
	// descriptor set) compiled into the binary via internal/defs; a Config
	// that disagrees with those constants would size subsystems smaller
	// than their backing arrays actually are. Catch the mismatch here
	// rather than let it surface later as a silent undercapacity bug.
	if c.MaxTasks != defs.MaxTasks {
		return fmt.Errorf("kconfig: MaxTasks %d does not match compiled-in defs.MaxTasks %d", c.MaxTasks, defs.MaxTasks)
	}
	if c.MaxIPCMessages != defs.MaxIPCMessages {
		return fmt.Errorf("kconfig: MaxIPCMessages %d does not match compiled-in defs.MaxIPCMessages %d", c.MaxIPCMessages, defs.MaxIPCMessages)
	}
	if c.MaxMessageSize != defs.MaxMessageSize {
		return fmt.Errorf("kconfig: MaxMessageSize %d does not match compiled-in defs.MaxMessageSize %d", c.MaxMessageSize, defs.MaxMessageSize)
	}
	if c.MaxPhysicalPages != defs.MaxPhysicalPages {
		return fmt.Errorf("kconfig: MaxPhysicalPages %d does not match compiled-in defs.MaxPhysicalPages %d", c.MaxPhysicalPages, defs.MaxPhysicalPages)
	}
	if c.TimerHz <= 0 || c.TimerHz > 1193182 {
		return fmt.Errorf("kconfig: TimerHz out of range, got %d", c.TimerHz)
	}
	if c.UserStackTop <= c.UserBase {
		return fmt.Errorf("kconfig: UserStackTop must exceed UserBase")
	}
	if c.UserStackSize == 0 || c.UserStackSize > c.UserStackTop-c.UserBase {
		return fmt.Errorf("kconfig: UserStackSize does not fit the user range")
	}
	return nil
}
