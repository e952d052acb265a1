package arch

import "github.com/shivanshudwivedi/Microkernel/internal/defs"

// Frame is the decoded view of the raw trapframe the assembly trap stub
// hands up: general registers followed by the architectural interrupt
// frame (error code, RIP, CS, RFLAGS, RSP, SS). The raw representation is
// a flat [defs.TFSize]uint64 because that is what the hardware push order
// and the trap stub's SUB/MOV sequence actually produce; Frame exists so
// nothing above internal/arch indexes it by magic constant.
type Frame struct {
	raw *[defs.TFSize]uint64
}

// NewFrame wraps a raw trapframe pushed by the trap stub.
func NewFrame(raw *[defs.TFSize]uint64) *Frame {
	return &Frame{raw: raw}
}

func (f *Frame) Rax() uint64      { return f.raw[defs.TFRax] }
func (f *Frame) Rdi() uint64      { return f.raw[defs.TFRdi] }
func (f *Frame) Rsi() uint64      { return f.raw[defs.TFRsi] }
func (f *Frame) Rdx() uint64      { return f.raw[defs.TFRdx] }
func (f *Frame) Rip() uint64      { return f.raw[defs.TFRip] }
func (f *Frame) Rsp() uint64      { return f.raw[defs.TFRsp] }
func (f *Frame) Rflags() uint64   { return f.raw[defs.TFRflags] }
func (f *Frame) ErrorCode() uint64 { return f.raw[defs.TFError] }

// SetReturn writes a syscall's return value into the slot the trap stub
// will restore into RAX.
func (f *Frame) SetReturn(v int64) { f.raw[defs.TFRax] = uint64(v) }

// SyscallNo reads the syscall number, passed in RAX per the calling convention.
func (f *Frame) SyscallNo() int64 { return int64(f.raw[defs.TFRax]) }

// Arg1, Arg2, Arg3 read the conventional argument registers (RDI, RSI, RDX).
func (f *Frame) Arg1() int64 { return int64(f.raw[defs.TFRdi]) }
func (f *Frame) Arg2() int64 { return int64(f.raw[defs.TFRsi]) }
func (f *Frame) Arg3() int64 { return int64(f.raw[defs.TFRdx]) }
