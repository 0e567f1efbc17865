package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAllocFreeLIFO(t *testing.T) {
	ht := newHandleTable(4)
	f1, _ := os.Open(os.DevNull)
	f2, _ := os.Open(os.DevNull)
	defer f1.Close()
	defer f2.Close()

	h1 := ht.alloc(f1)
	h2 := ht.alloc(f2)
	require.NotEqual(t, int32(0), h1)
	require.NotEqual(t, int32(0), h2)
	assert.Equal(t, f1, ht.get(h1))

	ht.free(h2)
	ht.free(h1)

	// LIFO: most recently freed (h1) is next allocated.
	f3, _ := os.Open(os.DevNull)
	defer f3.Close()
	h3 := ht.alloc(f3)
	assert.Equal(t, h1, h3)
}

func TestHandleIdentityBetweenAllocAndFree(t *testing.T) {
	ht := newHandleTable(2)
	f, _ := os.Open(os.DevNull)
	defer f.Close()
	h := ht.alloc(f)
	assert.Same(t, f, ht.get(h))
	ht.free(h)
	assert.Nil(t, ht.get(h))
}

func TestHandleTableNeverExceedsCapacity(t *testing.T) {
	ht := newHandleTable(1)
	f1, _ := os.Open(os.DevNull)
	defer f1.Close()
	h1 := ht.alloc(f1)
	require.NotEqual(t, int32(0), h1)

	f2, _ := os.Open(os.DevNull)
	defer f2.Close()
	h2 := ht.alloc(f2)
	assert.Equal(t, int32(0), h2, "table at capacity must refuse further alloc")
}

func TestValidatePathAcceptsWithinRoot(t *testing.T) {
	path, err := validatePath("/srv/box/", nil, []byte("foo.txt"), false)
	require.NoError(t, err)
	assert.Equal(t, "/srv/box/foo.txt", path)
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	_, err := validatePath("/srv/box/", nil, []byte("../etc/passwd"), false)
	require.Error(t, err)
	verr, ok := err.(*validationError)
	require.True(t, ok)
	assert.Equal(t, ViolationPathTraversal, verr.Kind)
}

func TestValidatePathAbsoluteOutsideRootRejected(t *testing.T) {
	_, err := validatePath("/srv/box/", nil, []byte("/etc/passwd"), false)
	require.Error(t, err)
	verr := err.(*validationError)
	assert.Equal(t, ViolationPathBlocked, verr.Kind)
}

func TestValidatePathAdditionalRule(t *testing.T) {
	rules := []PathRule{{Prefix: "/etc/", AllowWrite: false}}
	path, err := validatePath("/srv/box/", rules, []byte("/etc/passwd"), false)
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", path)

	_, err = validatePath("/srv/box/", rules, []byte("/etc/passwd"), true)
	require.Error(t, err)
	assert.Equal(t, ViolationWriteBlocked, err.(*validationError).Kind)
}

func TestNoDotOrDotDotInAcceptedPath(t *testing.T) {
	path, err := validatePath("/srv/box/", nil, []byte("a/./b/../c"), false)
	require.NoError(t, err)
	assert.NotContains(t, path, "/./")
	assert.NotContains(t, path, "/../")
	assert.Equal(t, "/srv/box/a/c", path)
}

func TestOpenWriteScenario(t *testing.T) {
	root := t.TempDir() + "/"
	var violated ViolationKind
	b := New(Config{Root: root, OnViolation: func(kind ViolationKind, input string) { violated = kind }})

	fd, errno := b.Open([]byte("foo.txt"), 4) // mode 4 = "w"
	require.Equal(t, int32(0), errno)
	assert.Equal(t, int32(3), fd)

	notWritten, errno := b.Write(fd, []byte("hello"))
	require.Equal(t, int32(0), errno)
	assert.Equal(t, int32(0), notWritten)

	result, errno := b.Close(fd)
	require.Equal(t, int32(0), errno)
	assert.Equal(t, int32(0), result)

	assert.FileExists(t, filepath.Join(root, "foo.txt"))
	assert.Empty(t, violated)
}

func TestOpenPathTraversalRejected(t *testing.T) {
	root := t.TempDir() + "/"
	var gotKind ViolationKind
	b := New(Config{Root: root, OnViolation: func(kind ViolationKind, input string) { gotKind = kind }})

	fd, errno := b.Open([]byte("../etc/passwd"), 0)
	assert.Equal(t, int32(-1), fd)
	assert.NotEqual(t, int32(0), errno)
	assert.Equal(t, ViolationPathTraversal, gotKind)
}

func TestIsTTY(t *testing.T) {
	b := New(Config{Root: t.TempDir() + "/"})
	assert.Equal(t, int32(1), b.IsTTY(0))
	assert.Equal(t, int32(1), b.IsTTY(1))
	assert.Equal(t, int32(1), b.IsTTY(2))
	assert.Equal(t, int32(0), b.IsTTY(3))
}

func TestRemoveBlockedFiresViolationOnce(t *testing.T) {
	root := t.TempDir() + "/"
	var kinds []ViolationKind
	b := New(Config{Root: root, OnViolation: func(kind ViolationKind, input string) { kinds = append(kinds, kind) }})

	result, errno := b.Remove([]byte("../etc/passwd"))
	assert.Equal(t, int32(-1), result)
	assert.NotEqual(t, int32(0), errno)
	require.Len(t, kinds, 1)
	assert.Equal(t, ViolationPathTraversal, kinds[0])
}

func TestRenameBlockedFiresViolationOnce(t *testing.T) {
	root := t.TempDir() + "/"
	var kinds []ViolationKind
	b := New(Config{Root: root, OnViolation: func(kind ViolationKind, input string) { kinds = append(kinds, kind) }})

	result, errno := b.Rename([]byte("../etc/passwd"), []byte("b.txt"))
	assert.Equal(t, int32(-1), result)
	assert.NotEqual(t, int32(0), errno)
	require.Len(t, kinds, 1)
	assert.Equal(t, ViolationPathTraversal, kinds[0])
}

func TestFlenPreservesOffset(t *testing.T) {
	root := t.TempDir() + "/"
	b := New(Config{Root: root})
	fd, errno := b.Open([]byte("f.txt"), 6) // "w+"
	require.Equal(t, int32(0), errno)
	_, errno = b.Write(fd, []byte("hello world"))
	require.Equal(t, int32(0), errno)
	_, errno = b.Seek(fd, 3)
	require.Equal(t, int32(0), errno)

	length, errno := b.Flen(fd)
	require.Equal(t, int32(0), errno)
	assert.Equal(t, int64(11), length)

	// offset must be unchanged after Flen
	data, notRead, errno := b.Read(fd, 100)
	require.Equal(t, int32(0), errno)
	assert.Equal(t, "lo world", string(data))
	assert.Equal(t, int32(92), notRead)
}
