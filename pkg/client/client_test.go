package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwbyrd/semihost/internal/host"
	"github.com/johnwbyrd/semihost/internal/optable"
	"github.com/johnwbyrd/semihost/internal/sandbox"
	"github.com/johnwbyrd/semihost/internal/wire"
	"github.com/johnwbyrd/semihost/pkg/client"
)

// flatMem is a MemoryAccess over a single flat byte slice, addr==offset,
// shared verbatim by both the guest Device and the host Session in this
// in-process loopback.
type flatMem struct{ buf []byte }

func (m *flatMem) ReadBlock(addr uint64, dst []byte) error {
	copy(dst, m.buf[addr:])
	return nil
}

func (m *flatMem) WriteBlock(addr uint64, src []byte) error {
	copy(m.buf[addr:], src)
	return nil
}

func TestClientOpenWriteReadClose(t *testing.T) {
	mem := &flatMem{buf: make([]byte, 4096)}
	backend := sandbox.New(sandbox.Config{Root: t.TempDir() + "/"})
	session := host.NewSession("s1", mem, backend, make([]byte, 2048))
	dev := client.NewDevice(mem, session, 0, 2048, 4, 4, wire.Little)

	ctx := context.Background()

	openResp, err := dev.Call(ctx, optable.OpOpen,
		client.Arg{Bytes: []byte("hello.txt")},
		client.Arg{Int: 4}, // mode "w"
	)
	require.NoError(t, err)
	require.False(t, openResp.IsError)
	fd := openResp.Result
	assert.Equal(t, int64(3), fd)

	writeResp, err := dev.Call(ctx, optable.OpWrite,
		client.Arg{Int: fd},
		client.Arg{Bytes: []byte("hi there")},
		client.Arg{Uint: 8},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(0), writeResp.Result) // 0 bytes not written

	closeResp, err := dev.Call(ctx, optable.OpClose, client.Arg{Int: fd})
	require.NoError(t, err)
	assert.Equal(t, int64(0), closeResp.Result)

	readOpenResp, err := dev.Call(ctx, optable.OpOpen,
		client.Arg{Bytes: []byte("hello.txt")},
		client.Arg{Int: 0}, // mode "r"
	)
	require.NoError(t, err)
	rfd := readOpenResp.Result

	readResp, err := dev.Call(ctx, optable.OpRead,
		client.Arg{Int: rfd},
		client.Arg{Uint: 64},
	)
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(readResp.Data))
}

func TestClientTickfreqReturnsRetn(t *testing.T) {
	mem := &flatMem{buf: make([]byte, 1024)}
	backend := sandbox.New(sandbox.Config{Root: t.TempDir() + "/"})
	session := host.NewSession("s2", mem, backend, make([]byte, 512))
	dev := client.NewDevice(mem, session, 0, 512, 4, 4, wire.Little)

	resp, err := dev.Call(context.Background(), optable.OpTickfreq)
	require.NoError(t, err)
	assert.False(t, resp.IsError)
}
