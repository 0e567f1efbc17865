package client

import (
	"context"

	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// MemoryAccess is the guest-side counterpart of internal/host.MemoryAccess:
// whatever backs the shared buffer the device register points at.
type MemoryAccess interface {
	ReadBlock(addr uint64, buf []byte) error
	WriteBlock(addr uint64, buf []byte) error
}

// Processor is whatever answers a device-register trigger — in this tree,
// *internal/host.Session. Kept as an interface here so pkg/client never
// imports internal/host and can be driven by any loopback in tests.
type Processor interface {
	Process(ctx context.Context, requestAddr uint64) error
}

// Device is a guest-side handle to one semihosting device instance: the
// shared buffer address, the CNFG values to advertise, and the processor
// that answers calls written there.
type Device struct {
	Mem    MemoryAccess
	Proc   Processor
	Addr   uint64
	buf    []byte

	IntSize, PtrSize int
	Endian           wire.Endianness

	cnfgSent bool
}

// NewDevice builds a Device with a scratch buffer sized buflen, shared
// with the host the same way internal/host.Session.Scratch is.
func NewDevice(mem MemoryAccess, proc Processor, addr uint64, buflen int, intSize, ptrSize int, endian wire.Endianness) *Device {
	return &Device{
		Mem: mem, Proc: proc, Addr: addr,
		buf:     make([]byte, buflen),
		IntSize: intSize, PtrSize: ptrSize, Endian: endian,
	}
}

// Call encodes op with args, writes it to the shared buffer, triggers the
// processor, and decodes whatever response comes back. The first Call on
// a Device always prepends a CNFG chunk; subsequent calls omit it, since
// the session already has it — sending it every time is harmless but
// wasteful and the one-CNFG convention matches spec.md's "declare config
// before / with the first call" framing.
func (d *Device) Call(ctx context.Context, op optable.Opcode, args ...Arg) (*Response, error) {
	row, err := optable.Lookup(op)
	if err != nil {
		return nil, err
	}

	n, err := buildRequest(d.buf, row, d.IntSize, d.PtrSize, d.Endian, !d.cnfgSent, args)
	if err != nil {
		return nil, err
	}
	d.cnfgSent = true

	if err := d.Mem.WriteBlock(d.Addr, d.buf[:n]); err != nil {
		return nil, err
	}
	if err := d.Proc.Process(ctx, d.Addr); err != nil {
		return nil, err
	}

	if err := d.Mem.ReadBlock(d.Addr, d.buf[:wire.RIFFHeaderSize]); err != nil {
		return nil, err
	}
	size, _, err := wire.ReadRIFFHeader(d.buf, wire.RIFFHeaderSize)
	if err != nil {
		return nil, err
	}
	total := size + 8
	if err := d.Mem.ReadBlock(d.Addr, d.buf[:total]); err != nil {
		return nil, err
	}

	return parseResponse(d.buf, total, row, d.IntSize, d.PtrSize, d.Endian)
}
