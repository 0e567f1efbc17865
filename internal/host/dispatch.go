package host

import (
	"context"

	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/parser"
	"github.com/johnwbyrd/semihost/internal/telemetry"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// dispatch extracts the arguments the opcode's row declares from view,
// invokes the matching Backend method, and writes the RETN response into
// scratch. Read/tmpnam/cmdline requests are capped to half the scratch
// buffer: the upper half stages response payloads so the request and
// response never have to overlap.
func (s *Session) dispatch(ctx context.Context, row optable.Row, view *parser.DecodedView, scratch []byte) error {
	half := len(scratch) / 2
	backendCtx, span := telemetry.StartBackendSpan(ctx, "session", row.Name)
	defer span.End()
	_ = backendCtx

	switch view.Opcode {
	case optable.OpOpen:
		path, ok := dataArg(view, scratch, 0)
		if !ok {
			return s.invalidParams(scratch)
		}
		mode := parmArg(view, 0)
		fd, errno := s.Backend.Open(path, int32(mode))
		s.writeRetn(scratch, int64(fd), errno, nil)

	case optable.OpClose:
		fd := parmArg(view, 0)
		result, errno := s.Backend.Close(int32(fd))
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpWriteC:
		data, ok := dataArg(view, scratch, 0)
		if !ok || len(data) < 1 {
			return s.invalidParams(scratch)
		}
		result, errno := s.Backend.WriteC(data[0])
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpWrite0:
		data, ok := dataArg(view, scratch, 0)
		if !ok {
			return s.invalidParams(scratch)
		}
		result, errno := s.Backend.Write0(data)
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpWrite:
		fd := parmArg(view, 0)
		data, ok := dataArg(view, scratch, 0)
		if !ok {
			return s.invalidParams(scratch)
		}
		notWritten, errno := s.Backend.Write(int32(fd), data)
		s.writeRetn(scratch, int64(notWritten), errno, nil)

	case optable.OpRead:
		fd := parmArg(view, 0)
		count := parmArg(view, 1)
		maxLen := int32(count)
		if int(maxLen) > half {
			maxLen = int32(half)
		}
		data, notRead, errno := s.Backend.Read(int32(fd), maxLen)
		s.writeRetn(scratch, int64(notRead), errno, func(off int) int {
			return writeDataChunk(scratch, off, wire.DataBinary, data)
		})

	case optable.OpReadC:
		ch, errno := s.Backend.ReadC()
		s.writeRetn(scratch, int64(ch), errno, nil)

	case optable.OpIsError:
		status := parmArg(view, 0)
		result := s.Backend.IsError(int32(status))
		s.writeRetn(scratch, int64(result), 0, nil)

	case optable.OpIsTTY:
		fd := parmArg(view, 0)
		result := s.Backend.IsTTY(int32(fd))
		s.writeRetn(scratch, int64(result), 0, nil)

	case optable.OpSeek:
		fd := parmArg(view, 0)
		pos := parmArg(view, 1)
		result, errno := s.Backend.Seek(int32(fd), pos)
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpFlen:
		fd := parmArg(view, 0)
		length, errno := s.Backend.Flen(int32(fd))
		s.writeRetn(scratch, length, errno, nil)

	case optable.OpTmpnam:
		id := parmArg(view, 0)
		maxLen := parmArg(view, 1)
		if int(maxLen) > half || maxLen == 0 {
			maxLen = int64(half)
		}
		path, errno := s.Backend.Tmpnam(int32(id), int32(maxLen))
		result := int64(0)
		if errno != 0 {
			result = -1
		}
		s.writeRetn(scratch, result, errno, func(off int) int {
			return writeDataChunk(scratch, off, wire.DataString, path)
		})

	case optable.OpRemove:
		path, ok := dataArg(view, scratch, 0)
		if !ok {
			return s.invalidParams(scratch)
		}
		result, errno := s.Backend.Remove(path)
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpRename:
		oldPath, ok1 := dataArg(view, scratch, 0)
		newPath, ok2 := dataArg(view, scratch, 1)
		if !ok1 || !ok2 {
			return s.invalidParams(scratch)
		}
		result, errno := s.Backend.Rename(oldPath, newPath)
		s.writeRetn(scratch, int64(result), errno, nil)

	case optable.OpClock:
		s.writeRetn(scratch, s.Backend.Clock(), 0, nil)

	case optable.OpTime:
		s.writeRetn(scratch, s.Backend.Time(), 0, nil)

	case optable.OpSystem:
		cmd, ok := dataArg(view, scratch, 0)
		if !ok {
			return s.invalidParams(scratch)
		}
		exitCode, errno := s.Backend.System(cmd)
		s.writeRetn(scratch, int64(exitCode), errno, nil)

	case optable.OpErrno:
		s.writeRetn(scratch, int64(s.Backend.Errno()), 0, nil)

	case optable.OpGetCmdline:
		maxLen := parmArg(view, 0)
		if int(maxLen) > half || maxLen == 0 {
			maxLen = int64(half)
		}
		cmdline, errno := s.Backend.GetCmdline(int32(maxLen))
		result := int64(0)
		if errno != 0 {
			result = -1
		}
		s.writeRetn(scratch, result, errno, func(off int) int {
			return writeDataChunk(scratch, off, wire.DataString, cmdline)
		})

	case optable.OpHeapinfo:
		heapBase, heapLimit, stackBase, stackLimit, ok := s.Backend.Heapinfo()
		if !ok {
			s.writeRetn(scratch, -1, 38 /* ENOSYS */, nil)
			break
		}
		s.writeRetn(scratch, 0, 0, func(off int) int {
			for _, v := range []uint64{heapBase, heapLimit, stackBase, stackLimit} {
				off = writePtrParm(scratch, off, s.PtrSize, s.Endian, v)
			}
			return off
		})

	case optable.OpExit, optable.OpExitExtended:
		reason := parmArg(view, 0)
		subcode := parmArg(view, 1)
		s.Backend.Exit(int32(reason), int32(subcode))
		// Formally correct response even though a real backend does not
		// return from a terminating Exit.
		s.writeRetn(scratch, 0, 0, nil)

	case optable.OpElapsed:
		ticks := s.Backend.Elapsed()
		s.writeRetn(scratch, 0, 0, func(off int) int {
			lo := uint32(ticks)
			hi := uint32(ticks >> 32)
			data := make([]byte, 8)
			_ = wire.PutUint32LE(data, 0, lo)
			_ = wire.PutUint32LE(data, 4, hi)
			return writeDataChunk(scratch, off, wire.DataBinary, data)
		})

	case optable.OpTickfreq:
		s.writeRetn(scratch, s.Backend.TickFreq(), 0, nil)

	default:
		return s.invalidParams(scratch)
	}
	return nil
}

func (s *Session) invalidParams(scratch []byte) error {
	s.writeErro(scratch, wire.ErrInvalidParams)
	return nil
}

func parmArg(view *parser.DecodedView, i int) int64 {
	if i >= len(view.Parms) {
		return 0
	}
	return view.Parms[i].Signed()
}

func dataArg(view *parser.DecodedView, scratch []byte, i int) ([]byte, bool) {
	if i >= len(view.Data) {
		return nil, false
	}
	return view.Data[i].Bytes(scratch), true
}

// writeDataChunk writes a nested DATA chunk at off and returns the offset
// of the next free byte.
func writeDataChunk(scratch []byte, off int, subtype uint8, data []byte) int {
	payloadOff, cursor, err := wire.WriteChunkHeader(scratch, off, wire.TagDATA)
	if err != nil {
		return off
	}
	scratch[payloadOff] = subtype
	scratch[payloadOff+1] = 0
	scratch[payloadOff+2] = 0
	scratch[payloadOff+3] = 0
	copy(scratch[payloadOff+4:], data)
	size := 4 + len(data)
	_ = wire.PatchChunkSize(scratch, cursor, size)
	return payloadOff + wire.PadToEven(size)
}

// writePtrParm writes a nested PARM(PTR) chunk at off and returns the
// offset of the next free byte.
func writePtrParm(scratch []byte, off, ptrSize int, end wire.Endianness, v uint64) int {
	payloadOff, cursor, err := wire.WriteChunkHeader(scratch, off, wire.TagPARM)
	if err != nil {
		return off
	}
	scratch[payloadOff] = wire.ParmPtr
	scratch[payloadOff+1] = 0
	scratch[payloadOff+2] = 0
	scratch[payloadOff+3] = 0
	_ = wire.WriteInt(scratch, payloadOff+4, int64(v), ptrSize, end)
	size := 4 + ptrSize
	_ = wire.PatchChunkSize(scratch, cursor, size)
	return payloadOff + wire.PadToEven(size)
}
