package host

// MemoryAccess is the narrow capability the host processor uses to reach
// into guest memory. It is assumed infallible: emulators satisfy this
// naturally, and a failure here is out of the core's responsibility.
type MemoryAccess interface {
	ReadBlock(addr uint64, buf []byte) error
	WriteBlock(addr uint64, buf []byte) error
}

// Backend is the pluggable service capability covering the full ARM
// semihosting operation set. Every method reports failures through a
// result/errno pair rather than a Go error, because that pair is exactly
// what crosses the wire in RETN — there is no richer error channel to
// preserve.
type Backend interface {
	Open(path []byte, mode int32) (fd int32, errno int32)
	Close(fd int32) (result int32, errno int32)
	WriteC(b byte) (result int32, errno int32)
	Write0(s []byte) (result int32, errno int32)
	Write(fd int32, data []byte) (notWritten int32, errno int32)
	Read(fd int32, maxLen int32) (data []byte, notRead int32, errno int32)
	ReadC() (ch int32, errno int32)
	IsError(status int32) int32
	IsTTY(fd int32) int32
	Seek(fd int32, pos int64) (result int32, errno int32)
	Flen(fd int32) (length int64, errno int32)
	Tmpnam(id int32, maxLen int32) (path []byte, errno int32)
	Remove(path []byte) (result int32, errno int32)
	Rename(oldPath, newPath []byte) (result int32, errno int32)
	Clock() int64
	Time() int64
	Elapsed() uint64
	TickFreq() int64
	System(cmd []byte) (exitCode int32, errno int32)
	GetCmdline(maxLen int32) (cmdline []byte, errno int32)
	// Heapinfo reports the four pointers returned by the HEAPINFO
	// operation. A backend with no heap/stack layout to report returns
	// ok=true with all four zero; ok=false makes the dispatcher answer
	// RETN(-1, ENOSYS) instead.
	Heapinfo() (heapBase, heapLimit, stackBase, stackLimit uint64, ok bool)
	// Exit is called for EXIT/EXIT_EXTENDED. It returns whether the
	// process actually terminated; when it returns false (policy refused
	// the exit) the dispatcher still writes a formally correct RETN(0,0).
	Exit(reason int32, subcode int32) (terminated bool)
	Errno() int32
}
