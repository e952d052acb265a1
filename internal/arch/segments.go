package arch

// Segment selectors for the minimal flat GDT the excluded boot trampoline
// installs before handing control to kernel_main. RPL 3 (the low two
// bits) marks user-mode selectors.
const (
	SelKernelCode uint16 = 0x08
	SelKernelData uint16 = 0x10
	SelUserCode   uint16 = 0x1b // index 3, RPL 3
	SelUserData   uint16 = 0x23 // index 4, RPL 3

	// RflagsUser is the flags register value a freshly created task gets:
	// interrupts enabled, IOPL 0.
	RflagsUser uint64 = 0x202
)
