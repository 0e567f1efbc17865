package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to spans around a single process() call and to
// sandbox backend operations nested inside it.
const (
	AttrSessionID  = "semihost.session_id"
	AttrOpcode     = "semihost.opcode"
	AttrOpcodeName = "semihost.opcode_name"
	AttrResult     = "semihost.result"
	AttrErrno      = "semihost.errno"
	AttrIntSize    = "semihost.int_size"
	AttrPtrSize    = "semihost.ptr_size"
	AttrEndian     = "semihost.endian"

	AttrSandboxRoot   = "sandbox.root"
	AttrSandboxPath   = "sandbox.path"
	AttrSandboxHandle = "sandbox.handle"
	AttrViolationKind = "sandbox.violation_kind"

	AttrBackendKind = "backend.kind"
)

// SessionID returns an attribute for the device session's identifier.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Opcode returns an attribute for the numeric opcode of a CALL chunk.
func Opcode(op uint8) attribute.KeyValue {
	return attribute.Int(AttrOpcode, int(op))
}

// OpcodeName returns an attribute for the human-readable opcode name.
func OpcodeName(name string) attribute.KeyValue {
	return attribute.String(AttrOpcodeName, name)
}

// Result returns an attribute for the RETN.result value of a response.
func Result(result int64) attribute.KeyValue {
	return attribute.Int64(AttrResult, result)
}

// Errno returns an attribute for the RETN.errno value of a response.
func Errno(errno int32) attribute.KeyValue {
	return attribute.Int(AttrErrno, int(errno))
}

// SandboxPath returns an attribute for a path being validated by the
// sandboxed file backend.
func SandboxPath(path string) attribute.KeyValue {
	return attribute.String(AttrSandboxPath, path)
}

// SandboxHandle returns an attribute for a file descriptor handle.
func SandboxHandle(handle int32) attribute.KeyValue {
	return attribute.Int(AttrSandboxHandle, int(handle))
}

// ViolationKind returns an attribute for a sandbox violation kind.
func ViolationKind(kind string) attribute.KeyValue {
	return attribute.String(AttrViolationKind, kind)
}

// BackendKind returns an attribute identifying which Backend implementation
// is servicing a request (e.g. "sandbox", "s3").
func BackendKind(kind string) attribute.KeyValue {
	return attribute.String(AttrBackendKind, kind)
}

// StartProcessSpan starts the root span around a single host Process() call.
func StartProcessSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "semihost.process", trace.WithAttributes(SessionID(sessionID)))
}

// StartBackendSpan starts a span around a single backend capability call
// (open, read, write, ...), nested under the enclosing process span.
func StartBackendSpan(ctx context.Context, backendKind, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{BackendKind(backendKind)}, attrs...)
	return StartSpan(ctx, "semihost.backend."+operation, trace.WithAttributes(allAttrs...))
}
