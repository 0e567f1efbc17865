package s3backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyAppliesPrefixAndStripsLeadingSlash(t *testing.T) {
	b := &Backend{keyPrefix: "tenant42/"}
	assert.Equal(t, "tenant42/foo/bar.txt", b.objectKey([]byte("/foo/bar.txt")))
	assert.Equal(t, "tenant42/foo.txt", b.objectKey([]byte("foo.txt")))
}

func TestObjectKeyTruncatesAtNUL(t *testing.T) {
	b := &Backend{}
	assert.Equal(t, "foo.txt", b.objectKey([]byte("foo.txt\x00garbage")))
}

func TestModeWritable(t *testing.T) {
	cases := []struct {
		mode             int32
		writable, trunc, ok bool
	}{
		{0, false, false, true},  // "r"
		{4, true, true, true},    // "w"
		{8, true, false, true},   // "a"
		{12, false, false, false},
	}
	for _, c := range cases {
		writable, trunc, ok := modeWritable(c.mode)
		assert.Equal(t, c.writable, writable, "mode %d writable", c.mode)
		assert.Equal(t, c.trunc, trunc, "mode %d trunc", c.mode)
		assert.Equal(t, c.ok, ok, "mode %d ok", c.mode)
	}
}

func TestHandleTableAllocFreeReuse(t *testing.T) {
	ht := newHandleTable(2)
	h1 := &handle{key: "a"}
	h2 := &handle{key: "b"}
	fd1 := ht.alloc(h1)
	fd2 := ht.alloc(h2)
	assert.NotEqual(t, int32(0), fd1)
	assert.NotEqual(t, int32(0), fd2)

	fd3 := ht.alloc(&handle{key: "c"})
	assert.Equal(t, int32(0), fd3, "table at capacity must refuse alloc")

	ht.free(fd1)
	fd4 := ht.alloc(&handle{key: "d"})
	assert.Equal(t, fd1, fd4)
}

func TestWriteGrowsBuffer(t *testing.T) {
	b := &Backend{handles: newHandleTable(4)}
	h := &handle{writable: true}
	fd := b.handles.alloc(h)

	notWritten, errno := b.Write(fd, []byte("hello"))
	assert.Equal(t, int32(0), notWritten)
	assert.Equal(t, int32(0), errno)
	assert.Equal(t, "hello", string(h.data))
	assert.True(t, h.dirty)

	notWritten, errno = b.Write(fd, []byte(" world"))
	assert.Equal(t, int32(0), notWritten)
	assert.Equal(t, int32(0), errno)
	assert.Equal(t, "hello world", string(h.data))
}

func TestReadRespectsPositionAndEOF(t *testing.T) {
	b := &Backend{handles: newHandleTable(4)}
	h := &handle{data: []byte("hello world")}
	fd := b.handles.alloc(h)

	data, notRead, errno := b.Read(fd, 5)
	assert.Equal(t, int32(0), errno)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int32(0), notRead)

	data, notRead, errno = b.Read(fd, 100)
	assert.Equal(t, int32(0), errno)
	assert.Equal(t, " world", string(data))
	assert.Equal(t, int32(94), notRead)

	data, _, _ = b.Read(fd, 10)
	assert.Empty(t, data)
}
