package defs

// Syscall numbers, as switched on by internal/trap's syscall dispatch.
const (
	SysSend  = 1
	SysRecv  = 2
	SysYield = 3
	SysExit  = 4
)

func SyscallName(n int64) string {
	switch n {
	case SysSend:
		return "SEND"
	case SysRecv:
		return "RECV"
	case SysYield:
		return "YIELD"
	case SysExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}
