package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/parser"
	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/johnwbyrd/semihost/internal/telemetry"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// Process is the host processor's public entry point (C4): it reads a
// request out of guest memory at requestAddr, parses it, dispatches to
// session.Backend, and writes the response back into the same guest
// bytes.
//
// Parser failures and protocol-level rejections are reported to the
// guest as an ERRO chunk and Process still returns nil: the guest sees an
// error response rather than a dead device. Process returns a non-nil
// error only for conditions the core itself cannot recover from (the
// memory-access capability failing, or the declared container size
// exceeding the scratch buffer).
func (s *Session) Process(ctx context.Context, requestAddr uint64) error {
	ctx, span := telemetry.StartProcessSpan(ctx, s.ID)
	defer span.End()
	start := time.Now()

	s.lastOpcode = nil
	ok, err := s.process(ctx, requestAddr)
	dur := time.Since(start).Seconds()
	opcodeName := "UNKNOWN"
	if s.lastOpcode != nil {
		opcodeName = *s.lastOpcode
	}
	if s.Metrics != nil {
		s.Metrics.ObserveRequest(opcodeName, dur, ok)
		if hc, ok := s.Backend.(handleCounter); ok {
			s.Metrics.SetOpenHandles(hc.OpenHandles())
		}
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}

// handleCounter is satisfied by internal/sandbox.Backend and
// pkg/backend/s3backend.Backend; a Backend that implements neither simply
// never updates the open-handles gauge.
type handleCounter interface {
	OpenHandles() int
}

func (s *Session) process(ctx context.Context, requestAddr uint64) (ok bool, err error) {
	scratch := s.Scratch

	// Step 1-2: read the 12-byte header and validate the declared size
	// fits the scratch buffer before reading the rest.
	if err := s.Mem.ReadBlock(requestAddr, scratch[:wire.RIFFHeaderSize]); err != nil {
		return false, err
	}
	declaredSize, _, err := wire.ReadRIFFHeader(scratch, wire.RIFFHeaderSize)
	if err != nil {
		s.writeErro(scratch, wire.ErrMalformedRIFF)
		return s.publish(ctx, requestAddr, scratch)
	}
	containerLen := declaredSize + 8
	if containerLen > len(scratch) {
		return false, semierr.ErrBufferFull
	}

	// Step 3: read the full container in one block.
	if err := s.Mem.ReadBlock(requestAddr, scratch[:containerLen]); err != nil {
		return false, err
	}

	// Step 4: parse. Before any CNFG the session has no int size yet, so a
	// 4-byte default lets a CNFG-less CALL decode and reach the
	// MISSING_CNFG check below.
	intSize := s.IntSize
	if !wire.ValidWidth(intSize) {
		intSize = 4
	}
	view, err := parser.Parse(scratch, containerLen, intSize, s.Endian)
	if err != nil {
		s.writeErro(scratch, wire.ErrMalformedRIFF)
		return s.publish(ctx, requestAddr, scratch)
	}

	// Step 5: update session config.
	if view.HasCNFG {
		s.IntSize = view.IntSize
		s.PtrSize = view.PtrSize
		s.Endian = view.Endian
		s.CnfgReceived = true
	}
	if !s.CnfgReceived {
		s.writeErro(scratch, wire.ErrMissingCNFG)
		return s.publish(ctx, requestAddr, scratch)
	}

	// Step 6: a CALL must be present.
	if !view.HasCall {
		s.writeErro(scratch, wire.ErrInvalidChunk)
		return s.publish(ctx, requestAddr, scratch)
	}

	name := opcodeName(view.Opcode)
	s.lastOpcode = &name

	// Step 7: consult the operation table.
	row, err := optable.Lookup(view.Opcode)
	if err != nil {
		s.writeErro(scratch, wire.ErrUnsupportedOp)
		return s.publish(ctx, requestAddr, scratch)
	}

	slog.DebugContext(ctx, "semihost call", "opcode", row.Name, "session", s.ID)

	// Steps 8-9: dispatch and build the response.
	if err := s.dispatch(ctx, row, view, scratch); err != nil {
		return false, err
	}
	if err := s.publish(ctx, requestAddr, scratch); err != nil {
		return false, err
	}
	return true, nil
}

func opcodeName(op optable.Opcode) string {
	if row, err := optable.Lookup(op); err == nil {
		return row.Name
	}
	return "UNKNOWN"
}

// publish writes scratch[:n] (n determined by the response already built
// into it) back to guest memory. The response occupies the container's
// leading bytes, per the in-place writing strategy: RETN/ERRO replace
// whatever chunks followed the RIFF header, and the RIFF size is patched
// to the new, generally much smaller, total.
func (s *Session) publish(ctx context.Context, addr uint64, scratch []byte) error {
	size, err := wire.Uint32LE(scratch, 4)
	if err != nil {
		return err
	}
	total := int(size) + 8
	return s.Mem.WriteBlock(addr, scratch[:total])
}

// writeErro overwrites scratch's leading bytes with a fresh RIFF/SEMI
// container holding a single ERRO chunk.
func (s *Session) writeErro(scratch []byte, code uint16) {
	_, riffCursor, _ := wire.WriteRIFFHeader(scratch, wire.TagSEMI)
	payloadOff, cursor, _ := wire.WriteChunkHeader(scratch, wire.RIFFHeaderSize, wire.TagERRO)
	_ = wire.PutUint16LE(scratch, payloadOff, code)
	scratch[payloadOff+2] = 0
	scratch[payloadOff+3] = 0
	_ = wire.PatchChunkSize(scratch, cursor, 4)
	end := payloadOff + wire.PadToEven(4)
	_ = wire.PatchRIFFSize(scratch, riffCursor, end-8)
}

// writeRetn overwrites scratch's leading bytes with a fresh RIFF/SEMI
// container holding a RETN chunk: result (int_size, declared endianness),
// a 4-byte LE errno, and whatever nested children body writes.
func (s *Session) writeRetn(scratch []byte, result int64, errno int32, body func(off int) int) {
	_, riffCursor, _ := wire.WriteRIFFHeader(scratch, wire.TagSEMI)
	payloadOff, cursor, _ := wire.WriteChunkHeader(scratch, wire.RIFFHeaderSize, wire.TagRETN)
	_ = wire.WriteInt(scratch, payloadOff, result, s.IntSize, s.Endian)
	_ = wire.PutUint32LE(scratch, payloadOff+s.IntSize, uint32(errno))
	nestedOff := payloadOff + s.IntSize + 4
	if body != nil {
		nestedOff = body(nestedOff)
	}
	retnSize := nestedOff - payloadOff
	_ = wire.PatchChunkSize(scratch, cursor, retnSize)
	end := payloadOff + wire.PadToEven(retnSize)
	_ = wire.PatchRIFFSize(scratch, riffCursor, end-8)
}
