// Package client implements the guest-side request builder (C6): a thin,
// mechanical encoder driven entirely by internal/optable's operation
// table, mirroring the per-command helper style of a CLI command tree —
// one generic call path parameterized by a table row, not one hand-written
// function per opcode.
package client

import (
	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// Arg is one positional argument supplied to Call, keyed by the slot
// index the operation table row declares for it. A given opcode only
// reads the fields relevant to the ArgKind at that slot.
type Arg struct {
	Int   int64
	Uint  uint64
	Bytes []byte
}

// buildRequest encodes a CNFG (if sendCnfg) followed by a CALL for op
// with args laid out per row.Args, starting at offset 0 of buf. It
// returns the total container length.
func buildRequest(buf []byte, row optable.Row, intSize, ptrSize int, endian wire.Endianness, sendCnfg bool, args []Arg) (int, error) {
	_, riffCursor, err := wire.WriteRIFFHeader(buf, wire.TagSEMI)
	if err != nil {
		return 0, err
	}
	off := wire.RIFFHeaderSize

	if sendCnfg {
		payloadOff, cursor, err := wire.WriteChunkHeader(buf, off, wire.TagCNFG)
		if err != nil {
			return 0, err
		}
		buf[payloadOff] = byte(intSize)
		buf[payloadOff+1] = byte(ptrSize)
		buf[payloadOff+2] = byte(endian)
		buf[payloadOff+3] = 0
		if err := wire.PatchChunkSize(buf, cursor, 4); err != nil {
			return 0, err
		}
		off = payloadOff + wire.PadToEven(4)
	}

	callPayloadOff, callCursor, err := wire.WriteChunkHeader(buf, off, wire.TagCALL)
	if err != nil {
		return 0, err
	}
	buf[callPayloadOff] = byte(row.Op)
	buf[callPayloadOff+1] = 0
	buf[callPayloadOff+2] = 0
	buf[callPayloadOff+3] = 0

	nestedOff := callPayloadOff + 4
	for _, desc := range row.Args {
		var a Arg
		if desc.Slot < len(args) {
			a = args[desc.Slot]
		}
		n, err := writeArg(buf, nestedOff, desc, a, intSize, ptrSize, endian)
		if err != nil {
			return 0, err
		}
		nestedOff = n
	}

	callSize := nestedOff - callPayloadOff
	if err := wire.PatchChunkSize(buf, callCursor, callSize); err != nil {
		return 0, err
	}
	end := callPayloadOff + wire.PadToEven(callSize)
	if err := wire.PatchRIFFSize(buf, riffCursor, end-8); err != nil {
		return 0, err
	}
	return end, nil
}

func writeArg(buf []byte, off int, desc optable.ArgDescriptor, a Arg, intSize, ptrSize int, endian wire.Endianness) (int, error) {
	switch desc.Kind {
	case optable.ArgParmInt, optable.ArgParmUint:
		payloadOff, cursor, err := wire.WriteChunkHeader(buf, off, wire.TagPARM)
		if err != nil {
			return 0, err
		}
		typ := byte(wire.ParmInt)
		width := intSize
		v := a.Int
		if desc.Kind == optable.ArgParmUint {
			v = int64(a.Uint)
		}
		buf[payloadOff] = typ
		buf[payloadOff+1], buf[payloadOff+2], buf[payloadOff+3] = 0, 0, 0
		if err := wire.WriteInt(buf, payloadOff+4, v, width, endian); err != nil {
			return 0, err
		}
		size := 4 + width
		if err := wire.PatchChunkSize(buf, cursor, size); err != nil {
			return 0, err
		}
		return payloadOff + wire.PadToEven(size), nil

	case optable.ArgDataByte:
		return writeData(buf, off, wire.DataBinary, a.Bytes)

	case optable.ArgDataStr:
		data := a.Bytes
		if len(data) == 0 || data[len(data)-1] != 0 {
			data = append(append([]byte{}, data...), 0)
		}
		return writeData(buf, off, wire.DataString, data)

	case optable.ArgDataPtr:
		return writeData(buf, off, wire.DataBinary, a.Bytes)

	default:
		return off, nil
	}
}

func writeData(buf []byte, off int, subtype uint8, data []byte) (int, error) {
	payloadOff, cursor, err := wire.WriteChunkHeader(buf, off, wire.TagDATA)
	if err != nil {
		return 0, err
	}
	buf[payloadOff] = subtype
	buf[payloadOff+1], buf[payloadOff+2], buf[payloadOff+3] = 0, 0, 0
	copy(buf[payloadOff+4:], data)
	size := 4 + len(data)
	if err := wire.PatchChunkSize(buf, cursor, size); err != nil {
		return 0, err
	}
	return payloadOff + wire.PadToEven(size), nil
}
