package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwbyrd/semihost/internal/host"
	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/wire"
)

// stubBackend implements host.Backend with Open returning a fixed handle.
type stubBackend struct{}

func (b *stubBackend) Open(path []byte, mode int32) (int32, int32)                { return 3, 0 }
func (b *stubBackend) Close(fd int32) (int32, int32)                              { return 0, 0 }
func (b *stubBackend) WriteC(c byte) (int32, int32)                               { return 0, 0 }
func (b *stubBackend) Write0(s []byte) (int32, int32)                             { return 0, 0 }
func (b *stubBackend) Write(fd int32, data []byte) (int32, int32)                 { return 0, 0 }
func (b *stubBackend) Read(fd int32, maxLen int32) ([]byte, int32, int32)         { return nil, maxLen, 0 }
func (b *stubBackend) ReadC() (int32, int32)                                      { return -1, 0 }
func (b *stubBackend) IsError(status int32) int32                                 { return 0 }
func (b *stubBackend) IsTTY(fd int32) int32                                       { return 0 }
func (b *stubBackend) Seek(fd int32, pos int64) (int32, int32)                    { return 0, 0 }
func (b *stubBackend) Flen(fd int32) (int64, int32)                               { return 0, 0 }
func (b *stubBackend) Tmpnam(id int32, maxLen int32) ([]byte, int32)              { return nil, 0 }
func (b *stubBackend) Remove(path []byte) (int32, int32)                         { return 0, 0 }
func (b *stubBackend) Rename(oldPath, newPath []byte) (int32, int32)             { return 0, 0 }
func (b *stubBackend) Clock() int64                                              { return 0 }
func (b *stubBackend) Time() int64                                               { return 0 }
func (b *stubBackend) Elapsed() uint64                                           { return 0 }
func (b *stubBackend) TickFreq() int64                                          { return 0 }
func (b *stubBackend) System(cmd []byte) (int32, int32)                         { return 0, 0 }
func (b *stubBackend) GetCmdline(maxLen int32) ([]byte, int32)                   { return nil, 0 }
func (b *stubBackend) Heapinfo() (uint64, uint64, uint64, uint64, bool)          { return 0, 0, 0, 0, false }
func (b *stubBackend) Exit(reason, subcode int32) bool                          { return false }
func (b *stubBackend) Errno() int32                                             { return 0 }

// encodeOpenRequest builds a RIFF/SEMI container with a CNFG chunk and a
// CALL(OPEN) chunk, the same layout internal/host's own tests build by
// hand against wire/optable directly.
func encodeOpenRequest(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 256)
	_, riffCursor, err := wire.WriteRIFFHeader(buf, wire.TagSEMI)
	require.NoError(t, err)

	off := wire.RIFFHeaderSize
	payloadOff, cursor, err := wire.WriteChunkHeader(buf, off, wire.TagCNFG)
	require.NoError(t, err)
	buf[payloadOff], buf[payloadOff+1], buf[payloadOff+2], buf[payloadOff+3] = 4, 4, byte(wire.Little), 0
	require.NoError(t, wire.PatchChunkSize(buf, cursor, 4))
	off = payloadOff + wire.PadToEven(4)

	callPayloadOff, callCursor, err := wire.WriteChunkHeader(buf, off, wire.TagCALL)
	require.NoError(t, err)
	buf[callPayloadOff] = byte(optable.OpOpen)
	nestedOff := callPayloadOff + 4

	path := "foo.txt\x00"
	dataPayloadOff, dataCursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagDATA)
	require.NoError(t, err)
	buf[dataPayloadOff] = wire.DataString
	copy(buf[dataPayloadOff+4:], path)
	require.NoError(t, wire.PatchChunkSize(buf, dataCursor, 4+len(path)))
	nestedOff = dataPayloadOff + wire.PadToEven(4+len(path))

	parmOff, parmCursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagPARM)
	require.NoError(t, err)
	buf[parmOff] = wire.ParmInt
	require.NoError(t, wire.WriteInt(buf, parmOff+4, 4, 4, wire.Little))
	require.NoError(t, wire.PatchChunkSize(buf, parmCursor, 8))
	nestedOff = parmOff + wire.PadToEven(8)

	parm2Off, parm2Cursor, err := wire.WriteChunkHeader(buf, nestedOff, wire.TagPARM)
	require.NoError(t, err)
	buf[parm2Off] = wire.ParmInt
	require.NoError(t, wire.WriteInt(buf, parm2Off+4, 7, 4, wire.Little))
	require.NoError(t, wire.PatchChunkSize(buf, parm2Cursor, 8))
	nestedOff = parm2Off + wire.PadToEven(8)

	callSize := nestedOff - callPayloadOff
	require.NoError(t, wire.PatchChunkSize(buf, callCursor, callSize))
	off = callPayloadOff + wire.PadToEven(callSize)

	require.NoError(t, wire.PatchRIFFSize(buf, riffCursor, off-8))
	totalSize, err := wire.Uint32LE(buf, 4)
	require.NoError(t, err)
	return buf[:8+int(totalSize)]
}

func TestServeHandlesOneRequestPerConnection(t *testing.T) {
	var accepted, closed []string
	newSession := func(id string, mem host.MemoryAccess) (*host.Session, error) {
		return host.NewSession(id, mem, &stubBackend{}, make([]byte, 256)), nil
	}
	var mu sync.Mutex
	srv := NewServer(newSession,
		func(s *host.Session) { mu.Lock(); accepted = append(accepted, s.ID); mu.Unlock() },
		func(id string) { mu.Lock(); closed = append(closed, id); mu.Unlock() },
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, addr) }()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	req := encodeOpenRequest(t)
	_, err = conn.Write(req)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	header := make([]byte, wire.RIFFHeaderSize)
	_, err = io.ReadFull(conn, header)
	require.NoError(t, err)
	size, err := wire.Uint32LE(header, 4)
	require.NoError(t, err)

	rest := make([]byte, int(size))
	_, err = io.ReadFull(conn, rest)
	require.NoError(t, err)

	full := append(header, rest...)
	hdr, err := wire.ReadChunkHeader(full, wire.RIFFHeaderSize, len(full))
	require.NoError(t, err)
	assert.Equal(t, wire.TagRETN, hdr.ID)

	result, err := wire.ReadInt(full, hdr.PayloadOff, 4, wire.Little, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result)

	conn.Close()
	srv.Stop()
	<-serveErr

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, accepted, 1)
	assert.Len(t, closed, 1)
}
