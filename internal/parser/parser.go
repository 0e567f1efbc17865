// Package parser implements the single-pass, allocation-free request/
// response parser (C3): it walks a RIFF/SEMI container and produces a flat
// DecodedView that borrows from the input buffer.
package parser

import (
	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// MaxParms and MaxData bound the decoded view's PARM/DATA arrays. Excess
// chunks inside a CALL are silently dropped once these are full — the
// dispatcher only ever needs as many arguments as the busiest opcode row,
// and bounding them keeps the view fixed-size and allocation-free.
const (
	MaxParms = 4
	MaxData  = 2
)

// ParmValue is one decoded PARM child: its declared type and the raw
// zero-extended bits of its value at the width CNFG declared for that
// type (int_size for INT, ptr_size for PTR).
type ParmValue struct {
	Type  uint8 // wire.ParmInt or wire.ParmPtr
	Width int
	Raw   uint64
}

// Signed returns v's value sign-extended to 64 bits per its declared
// width, independent of host word size.
func (v ParmValue) Signed() int64 {
	signBit := uint64(1) << (uint(v.Width)*8 - 1)
	uv := v.Raw
	if uv&signBit != 0 {
		uv |= ^uint64(0) << (uint(v.Width) * 8)
	}
	return int64(uv)
}

// DataRange is one decoded DATA child: a pointer into the parse buffer
// plus its length, never copied.
type DataRange struct {
	Subtype uint8
	Offset  int
	Length  int
}

// Bytes returns the data range's payload, borrowed from buf.
func (d DataRange) Bytes(buf []byte) []byte {
	return buf[d.Offset : d.Offset+d.Length]
}

// ChunkSlot records the offset and pre-allocated capacity of a RETN or
// ERRO chunk already present in the buffer, letting the host write its
// reply in place without re-encoding the container.
type ChunkSlot struct {
	Present    bool
	Offset     int // payload offset
	Capacity   int // declared payload size, i.e. the room available to the host
	HeaderOff  int // offset of the chunk's id/size header, for re-patching
}

// DecodedView is the product of Parse: the configuration, the CALL
// opcode and its arguments, and the pre-allocated response slots.
type DecodedView struct {
	HasCNFG    bool
	IntSize    int
	PtrSize    int
	Endian     wire.Endianness

	HasCall bool
	Opcode  optable.Opcode
	Parms   []ParmValue
	Data    []DataRange

	RETN ChunkSlot
	// Populated only if the RETN payload already held a result (guest-side
	// read-back of a response already written by the host).
	RETNResult int64
	RETNErrno  int32

	ERRO ChunkSlot
	// Populated only if the ERRO payload already held an error code.
	ERROCode uint16

	// ContainerEnd is the offset one past the last valid byte of the
	// container (8 + declared RIFF size), used by the host when
	// re-patching the RIFF size after writing a response.
	ContainerEnd int
}

// Parse validates and walks buf[:bufSize], returning a DecodedView that
// borrows from buf. defaultIntSize/defaultEndian are used only if no CNFG
// is present in the container (e.g. while decoding a bare response before
// any request-side CNFG has been recorded by the caller).
func Parse(buf []byte, bufSize int, defaultIntSize int, defaultEndian wire.Endianness) (*DecodedView, error) {
	size, _, err := wire.ReadRIFFHeader(buf, bufSize)
	if err != nil {
		return nil, err
	}
	end := 8 + size
	if end > len(buf) {
		return nil, semierr.ErrDataOverflow
	}

	view := &DecodedView{
		IntSize:      defaultIntSize,
		PtrSize:      defaultIntSize,
		Endian:       defaultEndian,
		ContainerEnd: end,
	}

	off := wire.RIFFHeaderSize
	for off < end {
		hdr, err := wire.ReadChunkHeader(buf, off, end)
		if err != nil {
			return nil, err
		}
		switch hdr.ID {
		case wire.TagCNFG:
			if err := parseCNFG(buf, hdr, view); err != nil {
				return nil, err
			}
		case wire.TagCALL:
			if err := parseCALL(buf, hdr, view); err != nil {
				return nil, err
			}
		case wire.TagRETN:
			if err := parseRETNSlot(buf, hdr, view); err != nil {
				return nil, err
			}
		case wire.TagERRO:
			parseERROSlot(buf, hdr, view)
		default:
			// Unknown top-level chunk: skip over by its declared padded
			// size, for forward compatibility.
		}
		off = hdr.NextOff
	}
	return view, nil
}

func parseCNFG(buf []byte, hdr wire.ChunkHeader, view *DecodedView) error {
	if hdr.Size < 4 {
		return semierr.ErrParse
	}
	intSize := int(buf[hdr.PayloadOff])
	ptrSize := int(buf[hdr.PayloadOff+1])
	endian := wire.Endianness(buf[hdr.PayloadOff+2])
	if !wire.ValidWidth(intSize) || !wire.ValidWidth(ptrSize) {
		return semierr.ErrInvalidArg
	}
	view.IntSize = intSize
	view.PtrSize = ptrSize
	view.Endian = endian
	view.HasCNFG = true
	return nil
}

func parseCALL(buf []byte, hdr wire.ChunkHeader, view *DecodedView) error {
	if hdr.Size < 4 {
		return semierr.ErrParse
	}
	view.Opcode = optable.Opcode(buf[hdr.PayloadOff])
	view.HasCall = true

	nestedOff := hdr.PayloadOff + 4
	nestedEnd := hdr.PayloadOff + hdr.Size
	return walkArgs(buf, nestedOff, nestedEnd, view)
}

// walkArgs decodes nested PARM/DATA chunks (shared by CALL, RETN, ERRO
// payloads) using the same chunk walker as the top level, appending into
// view's bounded Parms/Data arrays. Excess chunks beyond MaxParms/MaxData
// are dropped, not rejected: the decoded view is deliberately bounded
// memory and the dispatcher checks counts itself.
func walkArgs(buf []byte, off, end int, view *DecodedView) error {
	for off < end {
		hdr, err := wire.ReadChunkHeader(buf, off, end)
		if err != nil {
			return err
		}
		switch hdr.ID {
		case wire.TagPARM:
			if len(view.Parms) < MaxParms {
				pv, err := decodeParm(buf, hdr, view)
				if err != nil {
					return err
				}
				view.Parms = append(view.Parms, pv)
			}
		case wire.TagDATA:
			if len(view.Data) < MaxData {
				dr, err := decodeData(buf, hdr)
				if err != nil {
					return err
				}
				view.Data = append(view.Data, dr)
			}
		default:
			// unknown nested chunk: skip
		}
		off = hdr.NextOff
	}
	return nil
}

func decodeParm(buf []byte, hdr wire.ChunkHeader, view *DecodedView) (ParmValue, error) {
	if hdr.Size < 4 {
		return ParmValue{}, semierr.ErrParse
	}
	typ := buf[hdr.PayloadOff]
	width := view.IntSize
	if typ == wire.ParmPtr {
		width = view.PtrSize
	}
	valOff := hdr.PayloadOff + 4
	if hdr.Size < 4+width {
		return ParmValue{}, semierr.ErrParse
	}
	raw, err := wire.ReadInt(buf, valOff, width, view.Endian, false)
	if err != nil {
		return ParmValue{}, err
	}
	return ParmValue{Type: typ, Width: width, Raw: uint64(raw)}, nil
}

func decodeData(buf []byte, hdr wire.ChunkHeader) (DataRange, error) {
	if hdr.Size < 4 {
		return DataRange{}, semierr.ErrParse
	}
	subtype := buf[hdr.PayloadOff]
	dataOff := hdr.PayloadOff + 4
	dataLen := hdr.Size - 4
	return DataRange{Subtype: subtype, Offset: dataOff, Length: dataLen}, nil
}

func parseRETNSlot(buf []byte, hdr wire.ChunkHeader, view *DecodedView) error {
	view.RETN = ChunkSlot{Present: true, Offset: hdr.PayloadOff, Capacity: hdr.Size, HeaderOff: hdr.PayloadOff - wire.ChunkHeaderSize}
	if hdr.Size < view.IntSize+4 {
		return nil
	}
	result, err := wire.ReadInt(buf, hdr.PayloadOff, view.IntSize, view.Endian, true)
	if err != nil {
		return err
	}
	errnoRaw, err := wire.Uint32LE(buf, hdr.PayloadOff+view.IntSize)
	if err != nil {
		return err
	}
	view.RETNResult = result
	view.RETNErrno = int32(errnoRaw)

	nestedOff := hdr.PayloadOff + view.IntSize + 4
	nestedEnd := hdr.PayloadOff + hdr.Size
	if nestedOff < nestedEnd {
		return walkArgs(buf, nestedOff, nestedEnd, view)
	}
	return nil
}

func parseERROSlot(buf []byte, hdr wire.ChunkHeader, view *DecodedView) {
	view.ERRO = ChunkSlot{Present: true, Offset: hdr.PayloadOff, Capacity: hdr.Size, HeaderOff: hdr.PayloadOff - wire.ChunkHeaderSize}
	if hdr.Size < 2 {
		return
	}
	code, err := wire.Uint16LE(buf, hdr.PayloadOff)
	if err == nil {
		view.ERROCode = code
	}
}
