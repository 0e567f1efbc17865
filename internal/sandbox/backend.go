// Package sandbox implements the sandboxed file backend (C5): the
// default host.Backend that services semihosting calls against a local
// filesystem confined to a sandbox root, with path normalization and
// policy hooks.
package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/johnwbyrd/semihost/internal/audit"
)

// Flags are the sandbox's coarse feature toggles.
type Flags struct {
	ReadOnly    bool
	AllowSystem bool
	AllowExit   bool
}

// Config assembles everything a Backend needs at construction time.
type Config struct {
	Root     string // must end in a path separator
	Rules    []PathRule
	Flags    Flags
	Policy   PolicySource   // additional rules beyond the static list, optional
	Override PolicyOverride // optional, replaces built-in validation

	// SessionID identifies the device connection this Backend serves, set
	// per-connection by the transport.SessionFactory. Recorded on every
	// audit entry this Backend appends.
	SessionID string

	OnViolation ViolationObserver
	OnExit      ExitObserver

	// Audit, when non-nil, receives a side-channel entry for every
	// rejected path and blocked operation.
	Audit *audit.Log

	Capacity int // handle table capacity; 0 defaults to 256
}

// Backend is the sandboxed filesystem service capability. It satisfies
// internal/host.Backend.
type Backend struct {
	root      string
	rules     []PathRule
	flags     Flags
	policy    PolicySource
	override  PolicyOverride
	sessionID string

	onViolation ViolationObserver
	onExit      ExitObserver
	audit       *audit.Log

	handles   *handleTable
	lastErrno int32
	startTick time.Time
	tmpnamSeq int32
	exited    bool
}

// New constructs a Backend. Root is normalized to end in "/".
func New(cfg Config) *Backend {
	root := cfg.Root
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = 256
	}
	return &Backend{
		root:        root,
		rules:       cfg.Rules,
		flags:       cfg.Flags,
		policy:      cfg.Policy,
		override:    cfg.Override,
		sessionID:   cfg.SessionID,
		onViolation: cfg.OnViolation,
		onExit:      cfg.OnExit,
		audit:       cfg.Audit,
		handles:     newHandleTable(capacity),
		startTick:   time.Now(),
	}
}

// OpenHandles reports the number of currently allocated handles, for the
// semihost_open_handles gauge.
func (b *Backend) OpenHandles() int { return b.handles.openCount() }

// HandleFDs lists the currently allocated handle numbers, for
// pkg/api's GET /sessions/{id}/handles.
func (b *Backend) HandleFDs() []int32 { return b.handles.fds() }

func (b *Backend) allRules() []PathRule {
	if b.policy != nil {
		return append(append([]PathRule{}, b.rules...), b.policy.Rules()...)
	}
	return b.rules
}

func (b *Backend) reject(kind ViolationKind, input string) {
	b.lastErrno = int32(syscall.EACCES)
	if b.onViolation != nil {
		b.onViolation(kind, input)
	}
	if b.audit != nil {
		_ = b.audit.Append(audit.Entry{Time: time.Now().Unix(), SessionID: b.sessionID, Kind: string(kind), Detail: input})
	}
}

// resolve validates input and returns the canonical host path, or ("",
// false) having already recorded a violation.
func (b *Backend) resolve(input []byte, isWrite bool) (string, bool) {
	if isWrite && b.flags.ReadOnly {
		b.reject(ViolationWriteBlocked, string(input))
		return "", false
	}
	if b.override != nil {
		if path, ok := b.override.ValidatePath(input, isWrite); ok {
			return path, true
		}
	}
	path, err := validatePath(b.root, b.allRules(), input, isWrite)
	if err != nil {
		verr := err.(*validationError)
		b.reject(verr.Kind, string(input))
		return "", false
	}
	return path, true
}

// stdioModes maps the 12 numeric OPEN modes to stdio-style fopen strings.
var stdioModes = []string{
	"r", "rb", "r+", "r+b",
	"w", "wb", "w+", "w+b",
	"a", "ab", "a+", "a+b",
}

func modeFlags(mode int32) (flags int, writable bool, ok bool) {
	if mode < 0 || int(mode) >= len(stdioModes) {
		return 0, false, false
	}
	writable = mode >= 4
	switch {
	case mode < 4:
		flags = os.O_RDONLY
		if mode == 2 || mode == 3 {
			flags = os.O_RDWR
		}
	case mode < 8:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if mode == 6 || mode == 7 {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
	default:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if mode == 10 || mode == 11 {
			flags = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
	}
	return flags, writable, true
}

func (b *Backend) Open(path []byte, mode int32) (int32, int32) {
	flags, writable, ok := modeFlags(mode)
	if !ok {
		return -1, int32(syscall.EINVAL)
	}
	resolved, ok := b.resolve(path, writable)
	if !ok {
		return -1, b.lastErrno
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		b.lastErrno = errnoFromErr(err)
		return -1, b.lastErrno
	}
	h := b.handles.alloc(f)
	if h == 0 {
		_ = f.Close()
		b.lastErrno = int32(syscall.EMFILE)
		return -1, b.lastErrno
	}
	return h, 0
}

func (b *Backend) Close(fd int32) (int32, int32) {
	if fd >= 0 && fd <= 2 {
		return 0, 0
	}
	f := b.handles.get(fd)
	if f == nil {
		return -1, int32(syscall.EBADF)
	}
	err := f.Close()
	b.handles.free(fd)
	if err != nil {
		return -1, errnoFromErr(err)
	}
	return 0, 0
}

func (b *Backend) stream(fd int32) *os.File {
	switch fd {
	case 0:
		return os.Stdin
	case 1:
		return os.Stdout
	case 2:
		return os.Stderr
	default:
		return b.handles.get(fd)
	}
}

func (b *Backend) WriteC(c byte) (int32, int32) {
	if _, err := os.Stdout.Write([]byte{c}); err != nil {
		return 1, errnoFromErr(err)
	}
	return 0, 0
}

func (b *Backend) Write0(s []byte) (int32, int32) {
	if i := indexZero(s); i >= 0 {
		s = s[:i]
	}
	if _, err := os.Stdout.Write(s); err != nil {
		return 1, errnoFromErr(err)
	}
	return 0, 0
}

func (b *Backend) Write(fd int32, data []byte) (int32, int32) {
	f := b.stream(fd)
	if f == nil {
		return int32(len(data)), int32(syscall.EBADF)
	}
	n, err := f.Write(data)
	notWritten := int32(len(data) - n)
	if err != nil {
		return notWritten, errnoFromErr(err)
	}
	return notWritten, 0
}

func (b *Backend) Read(fd int32, maxLen int32) ([]byte, int32, int32) {
	f := b.stream(fd)
	if f == nil {
		return nil, maxLen, int32(syscall.EBADF)
	}
	buf := make([]byte, maxLen)
	n, err := f.Read(buf)
	notRead := maxLen - int32(n)
	if err != nil && n == 0 {
		return nil, maxLen, 0 // EOF or error: count == not_read per spec
	}
	return buf[:n], notRead, 0
}

func (b *Backend) ReadC() (int32, int32) {
	buf := make([]byte, 1)
	n, err := os.Stdin.Read(buf)
	if err != nil || n == 0 {
		return -1, errnoFromErr(err)
	}
	return int32(buf[0]), 0
}

func (b *Backend) IsError(status int32) int32 {
	if status < 0 {
		return 1
	}
	return 0
}

func (b *Backend) IsTTY(fd int32) int32 {
	if fd >= 0 && fd <= 2 {
		return 1
	}
	return 0
}

func (b *Backend) Seek(fd int32, pos int64) (int32, int32) {
	f := b.handles.get(fd)
	if f == nil {
		return -1, int32(syscall.EBADF)
	}
	if _, err := f.Seek(pos, os.SEEK_SET); err != nil {
		return -1, errnoFromErr(err)
	}
	return 0, 0
}

// Flen implements tell -> seek-end -> tell -> seek-back to report length
// without disturbing the file's current offset.
func (b *Backend) Flen(fd int32) (int64, int32) {
	f := b.handles.get(fd)
	if f == nil {
		return -1, int32(syscall.EBADF)
	}
	cur, err := f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return -1, errnoFromErr(err)
	}
	end, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return -1, errnoFromErr(err)
	}
	if _, err := f.Seek(cur, os.SEEK_SET); err != nil {
		return -1, errnoFromErr(err)
	}
	return end, 0
}

func (b *Backend) Tmpnam(id int32, maxLen int32) ([]byte, int32) {
	n := int(id) % 1000
	name := fmt.Sprintf("%stmp%03d.tmp", b.root, n)
	if maxLen > 0 && len(name) > int(maxLen) {
		return nil, int32(syscall.ENAMETOOLONG)
	}
	return []byte(name), 0
}

func (b *Backend) Remove(path []byte) (int32, int32) {
	resolved, ok := b.resolve(path, true)
	if !ok {
		return -1, b.lastErrno
	}
	if err := os.Remove(resolved); err != nil {
		return -1, errnoFromErr(err)
	}
	return 0, 0
}

// Rename requires two successful validations. The first resolution is
// copied aside (Go strings are immutable, so this is automatic) before
// the second validation runs, because the C original shared one scratch
// path buffer across both calls — a constraint Go's value-typed strings
// make moot, but the two-step shape is kept for fidelity to the operation
// order the spec describes.
func (b *Backend) Rename(oldPath, newPath []byte) (int32, int32) {
	oldResolved, ok := b.resolve(oldPath, true)
	if !ok {
		return -1, b.lastErrno
	}
	newResolved, ok := b.resolve(newPath, true)
	if !ok {
		return -1, b.lastErrno
	}
	if err := os.Rename(oldResolved, newResolved); err != nil {
		return -1, errnoFromErr(err)
	}
	return 0, 0
}

func (b *Backend) Clock() int64 {
	return time.Since(b.startTick).Milliseconds() / 10
}

func (b *Backend) Time() int64 {
	return time.Now().Unix()
}

func (b *Backend) Elapsed() uint64 {
	return uint64(time.Since(b.startTick).Nanoseconds())
}

func (b *Backend) TickFreq() int64 {
	return int64(time.Second)
}

func (b *Backend) System(cmd []byte) (int32, int32) {
	if i := indexZero(cmd); i >= 0 {
		cmd = cmd[:i]
	}
	if !b.flags.AllowSystem && (b.override == nil || !b.override.ValidateSystem(cmd)) {
		b.reject(ViolationSystemBlocked, string(cmd))
		return -1, b.lastErrno
	}
	c := exec.Command("/bin/sh", "-c", string(cmd))
	c.Stdout, c.Stderr, c.Stdin = os.Stdout, os.Stderr, os.Stdin
	err := c.Run()
	if err == nil {
		return 0, 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return int32(exitErr.ExitCode()), 0
	}
	return -1, int32(syscall.EIO)
}

func (b *Backend) GetCmdline(maxLen int32) ([]byte, int32) {
	cmdline := strings.Join(os.Args, " ")
	if int32(len(cmdline)) > maxLen {
		return nil, int32(syscall.ENAMETOOLONG)
	}
	return []byte(cmdline), 0
}

// Heapinfo reports no heap/stack layout: the sandboxed backend runs as an
// ordinary host process with no access to the guest's memory map. Per
// the ARM semihosting convention this is a successful call that returns
// an all-zero block rather than an error — see DESIGN.md.
func (b *Backend) Heapinfo() (uint64, uint64, uint64, uint64, bool) {
	return 0, 0, 0, 0, true
}

func (b *Backend) Exit(reason, subcode int32) bool {
	allowed := b.flags.AllowExit
	if b.override != nil && b.override.HandleExit(reason, subcode) {
		allowed = true
	}
	if !allowed {
		b.reject(ViolationExitBlocked, fmt.Sprintf("reason=%d subcode=%d", reason, subcode))
		if b.onExit != nil {
			b.onExit(reason, subcode, false)
		}
		return false
	}
	b.handles.closeAll()
	b.exited = true
	if b.onExit != nil {
		b.onExit(reason, subcode, true)
	}
	os.Exit(int(reason) & 0xff)
	return true
}

func (b *Backend) Errno() int32 { return b.lastErrno }

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func errnoFromErr(err error) int32 {
	if err == nil {
		return 0
	}
	if pe, ok := err.(*os.PathError); ok {
		if errno, ok := pe.Err.(syscall.Errno); ok {
			return int32(errno)
		}
	}
	if errno, ok := err.(syscall.Errno); ok {
		return int32(errno)
	}
	return int32(syscall.EIO)
}
