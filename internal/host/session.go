package host

import "github.com/johnwbyrd/semihost/internal/wire"

// Metrics is the minimal counter/histogram surface the host processor
// reports to, satisfied by pkg/metrics/prometheus in production and left
// nil in tests and minimal embeddings.
type Metrics interface {
	ObserveRequest(opcodeName string, durationSeconds float64, ok bool)
	ObserveSandboxViolation(kind string)
	SetOpenHandles(n int)
}

// Session is the per-device-instance state the spec calls "session state":
// the last observed CNFG values, the borrowed capabilities, and the
// scratch buffer that bounds the largest request/response this instance
// will handle. There is no per-operation session; every call to Process
// is one-shot.
type Session struct {
	ID string

	IntSize      int
	PtrSize      int
	Endian       wire.Endianness
	CnfgReceived bool

	Mem     MemoryAccess
	Backend Backend
	Scratch []byte

	Metrics Metrics

	// lastOpcode records the most recently dispatched opcode's name for
	// the metrics label; scoped to the lifetime of one Process call.
	lastOpcode *string
}

// NewSession constructs a Session with the given scratch buffer. The
// scratch buffer's capacity bounds the largest request/response the
// session can process; Process fails with BUFFER_FULL if a request
// declares a larger size.
func NewSession(id string, mem MemoryAccess, backend Backend, scratch []byte) *Session {
	return &Session{
		ID:      id,
		Mem:     mem,
		Backend: backend,
		Scratch: scratch,
	}
}
