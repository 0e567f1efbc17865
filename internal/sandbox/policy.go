package sandbox

// PolicySource supplies the additional path rules beyond the sandbox
// root. The static list from spec.md is the StaticPolicy below; a
// database-backed implementation lives in pkg/policystore and is wired in
// through this same interface, so the backend never needs to know which
// kind it has.
type PolicySource interface {
	Rules() []PathRule
}

// StaticPolicy is a fixed, in-memory PolicySource — the "small fixed-size
// list of additional path rules" the spec describes directly.
type StaticPolicy struct {
	rules []PathRule
}

// NewStaticPolicy builds a StaticPolicy from a fixed rule list.
func NewStaticPolicy(rules []PathRule) *StaticPolicy {
	return &StaticPolicy{rules: rules}
}

func (p *StaticPolicy) Rules() []PathRule { return p.rules }

// PolicyOverride lets an embedder replace path validation, system-command
// permission, and exit handling wholesale, bypassing the built-in
// sandbox algorithm entirely for the calls it chooses to answer.
type PolicyOverride interface {
	// ValidatePath returns (path, true) to accept, ("", false) to defer
	// to the built-in algorithm.
	ValidatePath(input []byte, isWrite bool) (string, bool)
	// ValidateSystem returns true to permit a SYSTEM call.
	ValidateSystem(cmd []byte) bool
	// HandleExit returns true if it has accepted responsibility for the
	// exit (the caller should not apply its own ALLOW_EXIT policy).
	HandleExit(reason, subcode int32) bool
}

// ViolationObserver is notified, after the fact, of every rejected path
// or blocked operation. It must not fail the operation further — it only
// observes.
type ViolationObserver func(kind ViolationKind, input string)

// ExitObserver is notified when do_exit is invoked, whether or not it was
// allowed to actually terminate.
type ExitObserver func(reason, subcode int32, terminated bool)
