package s3backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/johnwbyrd/semihost/pkg/metrics"
)

// Config assembles a Backend.
type Config struct {
	Client    *s3.Client
	Bucket    string
	KeyPrefix string // prepended to every resolved key; the object-store analogue of sandbox's Root

	AllowSystem bool // SYSTEM is always ENOSYS here; kept for interface symmetry with sandbox.Flags
	AllowExit   bool

	Metrics  metrics.S3Metrics
	Capacity int
}

// Backend is an S3-backed host.Backend. The sandbox root is reinterpreted
// as a key prefix: OPEN("foo/bar.txt") resolves to object key
// "{KeyPrefix}foo/bar.txt".
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	allowExit bool
	metrics   metrics.S3Metrics

	handles   *handleTable
	lastErrno int32
	startTick time.Time
}

// New constructs a Backend.
func New(cfg Config) *Backend {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = 256
	}
	return &Backend{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		allowExit: cfg.AllowExit,
		metrics:   cfg.Metrics,
		handles:   newHandleTable(capacity),
		startTick: time.Now(),
	}
}

func (b *Backend) OpenHandles() int { return b.handles.openCount() }

// HandleFDs lists the currently allocated handle numbers, for
// pkg/api's GET /sessions/{id}/handles.
func (b *Backend) HandleFDs() []int32 { return b.handles.fds() }

func (b *Backend) objectKey(path []byte) string {
	p := string(path)
	if i := strings.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimPrefix(p, "/")
	return b.keyPrefix + p
}

func (b *Backend) record(op string, start time.Time, err error) {
	if b.metrics != nil {
		b.metrics.ObserveRequest(op, time.Since(start), err)
	}
}

// modeWritable reports whether the 12 numeric OPEN modes imply a write
// intent and whether they imply starting from an empty object (truncate)
// versus appending to the existing one. Modes that do not truncate
// (0-3, 8-11) fetch the existing object first; "w"/"w+" (4-7) start from
// an empty buffer.
func modeWritable(mode int32) (writable, truncate, ok bool) {
	if mode < 0 || mode > 11 {
		return false, false, false
	}
	writable = mode >= 4
	truncate = mode >= 4 && mode <= 7
	return writable, truncate, true
}

func (b *Backend) Open(path []byte, mode int32) (int32, int32) {
	writable, truncate, ok := modeWritable(mode)
	if !ok {
		return -1, int32(syscall.EINVAL)
	}
	key := b.objectKey(path)
	start := time.Now()

	var data []byte
	if !truncate {
		out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: aws.String(b.bucket), Key: aws.String(key),
		})
		if err != nil {
			if !writable {
				b.record("get_object", start, err)
				b.lastErrno = errnoFromAWSErr(err)
				return -1, b.lastErrno
			}
			// append/read-write mode against a missing object starts empty.
			data = nil
		} else {
			defer out.Body.Close()
			buf, readErr := io.ReadAll(out.Body)
			if readErr != nil {
				b.record("get_object", start, readErr)
				b.lastErrno = int32(syscall.EIO)
				return -1, b.lastErrno
			}
			data = buf
		}
	}
	b.record("get_object", start, nil)

	h := &handle{key: key, data: data, writable: writable}
	if writable && !truncate {
		h.pos = int64(len(data))
	}
	fd := b.handles.alloc(h)
	if fd == 0 {
		b.lastErrno = int32(syscall.EMFILE)
		return -1, b.lastErrno
	}
	return fd, 0
}

func (b *Backend) flush(h *handle) error {
	if !h.dirty {
		return nil
	}
	start := time.Now()
	_, err := b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket), Key: aws.String(h.key),
		Body: bytes.NewReader(h.data),
	})
	b.record("put_object", start, err)
	if err == nil {
		h.dirty = false
	}
	return err
}

func (b *Backend) Close(fd int32) (int32, int32) {
	if fd >= 0 && fd <= 2 {
		return 0, 0
	}
	h := b.handles.get(fd)
	if h == nil {
		return -1, int32(syscall.EBADF)
	}
	err := b.flush(h)
	b.handles.free(fd)
	if err != nil {
		return -1, int32(syscall.EIO)
	}
	return 0, 0
}

func (b *Backend) WriteC(c byte) (int32, int32) {
	if _, err := os.Stdout.Write([]byte{c}); err != nil {
		return 1, int32(syscall.EIO)
	}
	return 0, 0
}

func (b *Backend) Write0(s []byte) (int32, int32) {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if _, err := os.Stdout.Write(s); err != nil {
		return 1, int32(syscall.EIO)
	}
	return 0, 0
}

func (b *Backend) Write(fd int32, data []byte) (int32, int32) {
	h := b.handles.get(fd)
	if h == nil || !h.writable {
		return int32(len(data)), int32(syscall.EBADF)
	}
	end := h.pos + int64(len(data))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[h.pos:end], data)
	h.pos = end
	h.dirty = true
	return 0, 0
}

func (b *Backend) Read(fd int32, maxLen int32) ([]byte, int32, int32) {
	h := b.handles.get(fd)
	if h == nil {
		return nil, maxLen, int32(syscall.EBADF)
	}
	remaining := int64(len(h.data)) - h.pos
	if remaining <= 0 {
		return nil, maxLen, 0
	}
	n := int64(maxLen)
	if n > remaining {
		n = remaining
	}
	out := h.data[h.pos : h.pos+n]
	h.pos += n
	return out, maxLen - int32(n), 0
}

func (b *Backend) ReadC() (int32, int32) {
	buf := make([]byte, 1)
	n, err := os.Stdin.Read(buf)
	if err != nil || n == 0 {
		return -1, int32(syscall.EIO)
	}
	return int32(buf[0]), 0
}

func (b *Backend) IsError(status int32) int32 {
	if status < 0 {
		return 1
	}
	return 0
}

func (b *Backend) IsTTY(fd int32) int32 {
	if fd >= 0 && fd <= 2 {
		return 1
	}
	return 0
}

func (b *Backend) Seek(fd int32, pos int64) (int32, int32) {
	h := b.handles.get(fd)
	if h == nil {
		return -1, int32(syscall.EBADF)
	}
	h.pos = pos
	return 0, 0
}

func (b *Backend) Flen(fd int32) (int64, int32) {
	h := b.handles.get(fd)
	if h == nil {
		return -1, int32(syscall.EBADF)
	}
	return int64(len(h.data)), 0
}

// Tmpnam is not meaningful against an object store: there is no
// filesystem namespace to probe for an unused name, so this always
// reports ENOSYS rather than fabricating one.
func (b *Backend) Tmpnam(id int32, maxLen int32) ([]byte, int32) {
	return nil, int32(syscall.ENOSYS)
}

func (b *Backend) Remove(path []byte) (int32, int32) {
	key := b.objectKey(path)
	start := time.Now()
	_, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket), Key: aws.String(key),
	})
	b.record("delete_object", start, err)
	if err != nil {
		b.lastErrno = errnoFromAWSErr(err)
		return -1, b.lastErrno
	}
	return 0, 0
}

// Rename has no native S3 equivalent: it is implemented as copy-then-
// delete, which is not atomic — a crash between the two leaves the
// object under both keys. Acceptable here because RENAME is not on any
// invariant's crash-consistency path.
func (b *Backend) Rename(oldPath, newPath []byte) (int32, int32) {
	oldKey := b.objectKey(oldPath)
	newKey := b.objectKey(newPath)
	start := time.Now()
	source := b.bucket + "/" + oldKey
	_, err := b.client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket: aws.String(b.bucket), Key: aws.String(newKey), CopySource: aws.String(source),
	})
	b.record("copy_object", start, err)
	if err != nil {
		b.lastErrno = errnoFromAWSErr(err)
		return -1, b.lastErrno
	}
	return b.Remove(oldPath)
}

func (b *Backend) Clock() int64 { return time.Since(b.startTick).Milliseconds() / 10 }
func (b *Backend) Time() int64  { return time.Now().Unix() }

func (b *Backend) Elapsed() uint64   { return uint64(time.Since(b.startTick).Nanoseconds()) }
func (b *Backend) TickFreq() int64   { return int64(time.Second) }

// System is not meaningful against an object store: there is no local
// shell context tied to the bucket, so this always reports ENOSYS.
func (b *Backend) System(cmd []byte) (int32, int32) {
	return -1, int32(syscall.ENOSYS)
}

func (b *Backend) GetCmdline(maxLen int32) ([]byte, int32) {
	cmdline := strings.Join(os.Args, " ")
	if int32(len(cmdline)) > maxLen {
		return nil, int32(syscall.ENAMETOOLONG)
	}
	return []byte(cmdline), 0
}

func (b *Backend) Heapinfo() (uint64, uint64, uint64, uint64, bool) {
	return 0, 0, 0, 0, true
}

func (b *Backend) Exit(reason, subcode int32) bool {
	if !b.allowExit {
		return false
	}
	for fd := int32(firstFD); fd < firstFD+int32(len(b.handles.slots)); fd++ {
		if h := b.handles.get(fd); h != nil {
			_ = b.flush(h)
		}
	}
	os.Exit(int(reason) & 0xff)
	return true
}

func (b *Backend) Errno() int32 { return b.lastErrno }

func errnoFromAWSErr(err error) int32 {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return int32(syscall.ENOENT)
		case "AccessDenied":
			return int32(syscall.EACCES)
		}
	}
	return int32(syscall.EIO)
}
