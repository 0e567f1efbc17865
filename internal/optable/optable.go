// Package optable is the single source of truth for per-opcode request
// shape and response shape. Both the host dispatcher (internal/host) and
// the guest request builder (pkg/client) read the same table so that a
// request encoded by one side is exactly what the other expects to decode.
package optable

import "github.com/johnwbyrd/semihost/internal/semierr"

// Opcode is the 1-byte operation selector inside a CALL chunk.
type Opcode uint8

const (
	OpOpen         Opcode = 0x01
	OpClose        Opcode = 0x02
	OpWriteC       Opcode = 0x03
	OpWrite0       Opcode = 0x04
	OpWrite        Opcode = 0x05
	OpRead         Opcode = 0x06
	OpReadC        Opcode = 0x07
	OpIsError      Opcode = 0x08
	OpIsTTY        Opcode = 0x09
	OpSeek         Opcode = 0x0A
	OpFlen         Opcode = 0x0C
	OpTmpnam       Opcode = 0x0D
	OpRemove       Opcode = 0x0E
	OpRename       Opcode = 0x0F
	OpClock        Opcode = 0x10
	OpTime         Opcode = 0x11
	OpSystem       Opcode = 0x12
	OpErrno        Opcode = 0x13
	OpGetCmdline   Opcode = 0x15
	OpHeapinfo     Opcode = 0x16
	OpExit         Opcode = 0x18
	OpExitExtended Opcode = 0x20
	OpElapsed      Opcode = 0x30
	OpTickfreq     Opcode = 0x31
)

// ArgKind identifies how a single request argument is encoded on the wire.
type ArgKind uint8

const (
	ArgParmInt ArgKind = iota // signed PARM of width int_size
	ArgParmUint
	ArgDataPtr  // DATA(BINARY) whose length comes from another slot
	ArgDataStr  // DATA(STRING), NUL-terminated
	ArgDataByte // DATA(BINARY) of exactly one byte (WRITEC)
)

// ArgDescriptor names one request-chunk argument: its kind, the slot it
// occupies in the caller's argument vector, and — for ArgDataPtr — the
// slot holding its length.
type ArgDescriptor struct {
	Kind    ArgKind
	Slot    int
	LenSlot int // only meaningful when Kind == ArgDataPtr
}

// ResponseKind identifies the shape of an operation's RETN chunk.
type ResponseKind uint8

const (
	RespInt      ResponseKind = iota // RETN: bare result/errno
	RespData                        // RETN with a nested DATA(read-back bytes)
	RespHeapinfo                    // RETN with four nested PARM(PTR)
	RespElapsed                     // RETN with a nested DATA(8-byte tick count)
)

// DataResponse describes where a DATA-shaped response is delivered back
// into the caller's argument vector: the destination slot for the bytes
// and the slot holding the caller's maximum buffer length.
type DataResponse struct {
	DestSlot   int
	MaxLenSlot int
}

// Row is one operation table entry: the request layout and response shape
// for a single opcode. A row is referentially transparent — a given opcode
// maps to exactly one row for the lifetime of the binary.
type Row struct {
	Op       Opcode
	Name     string
	Args     []ArgDescriptor
	Response ResponseKind
	Data     DataResponse // valid when Response == RespData
}

// Table is the static, read-only operation table. Lookup is linear: with
// only a couple dozen entries a linear scan is cheaper and simpler than
// hashing, and it keeps the table itself trivially auditable as a single
// literal.
var Table = []Row{
	{Op: OpOpen, Name: "OPEN", Args: []ArgDescriptor{
		{Kind: ArgDataStr, Slot: 0},
		{Kind: ArgParmInt, Slot: 1},
		{Kind: ArgParmUint, Slot: 2},
	}, Response: RespInt},

	{Op: OpClose, Name: "CLOSE", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
	}, Response: RespInt},

	{Op: OpWriteC, Name: "WRITEC", Args: []ArgDescriptor{
		{Kind: ArgDataByte, Slot: 0},
	}, Response: RespInt},

	{Op: OpWrite0, Name: "WRITE0", Args: []ArgDescriptor{
		{Kind: ArgDataStr, Slot: 0},
	}, Response: RespInt},

	{Op: OpWrite, Name: "WRITE", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgDataPtr, Slot: 1, LenSlot: 2},
		{Kind: ArgParmUint, Slot: 2},
	}, Response: RespInt},

	{Op: OpRead, Name: "READ", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgParmUint, Slot: 1},
	}, Response: RespData, Data: DataResponse{DestSlot: 0, MaxLenSlot: 1}},

	{Op: OpReadC, Name: "READC", Args: nil, Response: RespInt},

	{Op: OpIsError, Name: "ISERROR", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
	}, Response: RespInt},

	{Op: OpIsTTY, Name: "ISTTY", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
	}, Response: RespInt},

	{Op: OpSeek, Name: "SEEK", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgParmInt, Slot: 1},
	}, Response: RespInt},

	{Op: OpFlen, Name: "FLEN", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
	}, Response: RespInt},

	{Op: OpTmpnam, Name: "TMPNAM", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgParmUint, Slot: 1},
	}, Response: RespData, Data: DataResponse{DestSlot: 0, MaxLenSlot: 1}},

	{Op: OpRemove, Name: "REMOVE", Args: []ArgDescriptor{
		{Kind: ArgDataPtr, Slot: 0, LenSlot: 1},
		{Kind: ArgParmUint, Slot: 1},
	}, Response: RespInt},

	{Op: OpRename, Name: "RENAME", Args: []ArgDescriptor{
		{Kind: ArgDataPtr, Slot: 0, LenSlot: 1},
		{Kind: ArgParmUint, Slot: 1},
		{Kind: ArgDataPtr, Slot: 2, LenSlot: 3},
		{Kind: ArgParmUint, Slot: 3},
	}, Response: RespInt},

	{Op: OpClock, Name: "CLOCK", Args: nil, Response: RespInt},
	{Op: OpTime, Name: "TIME", Args: nil, Response: RespInt},

	{Op: OpSystem, Name: "SYSTEM", Args: []ArgDescriptor{
		{Kind: ArgDataPtr, Slot: 0, LenSlot: 1},
		{Kind: ArgParmUint, Slot: 1},
	}, Response: RespInt},

	{Op: OpErrno, Name: "ERRNO", Args: nil, Response: RespInt},

	{Op: OpGetCmdline, Name: "GET_CMDLINE", Args: []ArgDescriptor{
		{Kind: ArgParmUint, Slot: 0},
	}, Response: RespData, Data: DataResponse{DestSlot: 0, MaxLenSlot: 0}},

	{Op: OpHeapinfo, Name: "HEAPINFO", Args: nil, Response: RespHeapinfo},

	{Op: OpExit, Name: "EXIT", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgParmInt, Slot: 1},
	}, Response: RespInt},

	{Op: OpExitExtended, Name: "EXIT_EXTENDED", Args: []ArgDescriptor{
		{Kind: ArgParmInt, Slot: 0},
		{Kind: ArgParmInt, Slot: 1},
	}, Response: RespInt},

	{Op: OpElapsed, Name: "ELAPSED", Args: nil, Response: RespElapsed},
	{Op: OpTickfreq, Name: "TICKFREQ", Args: nil, Response: RespInt},
}

// Lookup finds the row for op. Unknown opcodes are the dispatcher's
// UNSUPPORTED_OP case.
func Lookup(op Opcode) (Row, error) {
	for _, row := range Table {
		if row.Op == op {
			return row, nil
		}
	}
	return Row{}, semierr.ErrUnknownOpcode
}
