// Package semierr defines the library-level error sentinels shared by the
// wire codec, parser, and host processor. These never cross the wire; the
// host processor converts the recoverable ones into protocol ERRO chunks.
package semierr

import "errors"

var (
	ErrBufferFull     = errors.New("buffer full")
	ErrInvalidArg     = errors.New("invalid argument")
	ErrNotInitialized = errors.New("not initialized")
	ErrParse          = errors.New("parse error")
	ErrDataOverflow   = errors.New("data overflow")
	ErrHeaderOverflow = errors.New("header overflow")
	ErrBadRIFFMagic   = errors.New("bad RIFF magic")
	ErrBadFormType    = errors.New("bad form type")
	ErrNotFound       = errors.New("not found")
	ErrUnknownOpcode  = errors.New("unknown opcode")
)

// Error wraps a library error with the operation and path/input that
// triggered it, in the style of *PathError from the standard library.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given operation and path, preserving it for
// errors.Is/errors.As against the sentinels above.
func New(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}
