package parser

import (
	"testing"

	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/johnwbyrd/semihost/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildOpenRequest encodes the S1 scenario: CNFG(4,4,little) + CALL(OPEN)
// with DATA(STRING,"foo.txt\0"), PARM(INT,4), PARM(UINT,7).
func buildOpenRequest(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 256)
	_, riffCursor, err := wire.WriteRIFFHeader(buf, wire.TagSEMI)
	require.NoError(t, err)

	off := wire.RIFFHeaderSize

	// CNFG
	payloadOff, cursor, err := wire.WriteChunkHeader(buf, off, wire.TagCNFG)
	require.NoError(t, err)
	buf[payloadOff] = 4
	buf[payloadOff+1] = 4
	buf[payloadOff+2] = byte(wire.Little)
	buf[payloadOff+3] = 0
	require.NoError(t, wire.PatchChunkSize(buf, cursor, 4))
	off = payloadOff + wire.PadToEven(4)

	// CALL
	callPayloadOff, callCursor, err := wire.WriteChunkHeader(buf, off, wire.TagCALL)
	require.NoError(t, err)
	buf[callPayloadOff] = byte(optable.OpOpen)
	nestedOff := callPayloadOff + 4

	// DATA(STRING, "foo.txt\0")
	path := "foo.txt\x00"
	dataPayloadOff, dataCursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagDATA)
	require.NoError(t, err)
	buf[dataPayloadOff] = wire.DataString
	copy(buf[dataPayloadOff+4:], path)
	dataSize := 4 + len(path)
	require.NoError(t, wire.PatchChunkSize(buf, dataCursor, dataSize))
	nestedOff = dataPayloadOff + wire.PadToEven(dataSize)

	// PARM(INT, 4) -- mode
	parmPayloadOff, parmCursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagPARM)
	require.NoError(t, err)
	buf[parmPayloadOff] = wire.ParmInt
	require.NoError(t, wire.WriteInt(buf, parmPayloadOff+4, 4, 4, wire.Little))
	require.NoError(t, wire.PatchChunkSize(buf, parmCursor, 8))
	nestedOff = parmPayloadOff + wire.PadToEven(8)

	// PARM(UINT, 7) -- length
	parm2PayloadOff, parm2Cursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagPARM)
	require.NoError(t, err)
	buf[parm2PayloadOff] = wire.ParmInt
	require.NoError(t, wire.WriteInt(buf, parm2PayloadOff+4, 7, 4, wire.Little))
	require.NoError(t, wire.PatchChunkSize(buf, parm2Cursor, 8))
	nestedOff = parm2PayloadOff + wire.PadToEven(8)

	callSize := nestedOff - callPayloadOff
	require.NoError(t, wire.PatchChunkSize(buf, callCursor, callSize))
	off = callPayloadOff + wire.PadToEven(callSize)

	total := off - 8
	require.NoError(t, wire.PatchRIFFSize(buf, riffCursor, total))

	return buf[:off]
}

func TestParseOpenRequest(t *testing.T) {
	buf := buildOpenRequest(t)
	view, err := Parse(buf, len(buf), 4, wire.Little)
	require.NoError(t, err)

	assert.True(t, view.HasCNFG)
	assert.Equal(t, 4, view.IntSize)
	assert.Equal(t, 4, view.PtrSize)
	assert.Equal(t, wire.Little, view.Endian)

	assert.True(t, view.HasCall)
	assert.Equal(t, optable.OpOpen, view.Opcode)
	require.Len(t, view.Data, 1)
	assert.Equal(t, "foo.txt\x00", string(view.Data[0].Bytes(buf)))

	require.Len(t, view.Parms, 2)
	assert.Equal(t, int64(4), view.Parms[0].Signed())
	assert.Equal(t, int64(7), view.Parms[1].Signed())
}

func TestParseMissingCNFGStillParses(t *testing.T) {
	buf := make([]byte, 64)
	_, riffCursor, err := wire.WriteRIFFHeader(buf, wire.TagSEMI)
	require.NoError(t, err)

	payloadOff, cursor, err := wire.WriteChunkHeader(buf, wire.RIFFHeaderSize, wire.TagCALL)
	require.NoError(t, err)
	buf[payloadOff] = byte(optable.OpClose)
	nestedOff := payloadOff + 4
	parmOff, parmCursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagPARM)
	require.NoError(t, err)
	buf[parmOff] = wire.ParmInt
	require.NoError(t, wire.WriteInt(buf, parmOff+4, 0, 4, wire.Little))
	require.NoError(t, wire.PatchChunkSize(buf, parmCursor, 8))
	nestedOff = parmOff + wire.PadToEven(8)

	callSize := nestedOff - payloadOff
	require.NoError(t, wire.PatchChunkSize(buf, cursor, callSize))
	end := payloadOff + wire.PadToEven(callSize)
	require.NoError(t, wire.PatchRIFFSize(buf, riffCursor, end-8))

	view, err := Parse(buf, end, 4, wire.Little)
	require.NoError(t, err)
	assert.False(t, view.HasCNFG)
	assert.True(t, view.HasCall)
	assert.Equal(t, optable.OpClose, view.Opcode)
}

func TestParseBadMagic(t *testing.T) {
	buf := make([]byte, 32)
	copy(buf[0:4], "JUNK")
	_, err := Parse(buf, 32, 4, wire.Little)
	assert.ErrorIs(t, err, semierr.ErrBadRIFFMagic)
}

func TestParseDataOverflow(t *testing.T) {
	buf := make([]byte, 32)
	_, cursor, err := wire.WriteRIFFHeader(buf, wire.TagSEMI)
	require.NoError(t, err)
	// Declare a size that runs past the buffer.
	require.NoError(t, wire.PatchRIFFSize(buf, cursor, 1000))
	_, err = Parse(buf, 32, 4, wire.Little)
	assert.Error(t, err)
}
