package wire

import "github.com/johnwbyrd/semihost/internal/semierr"

// ChunkCursor is the position of a chunk's size field, returned by
// WriteChunkHeader so the caller can come back and patch in the real
// payload size once the payload has been written.
type ChunkCursor struct {
	sizeOff int
}

// WriteChunkHeader writes id and a placeholder size at off, returning the
// offset immediately after the header (where the payload begins) and a
// cursor for PatchChunkSize.
func WriteChunkHeader(buf []byte, off int, id FourCC) (payloadOff int, cursor ChunkCursor, err error) {
	if off < 0 || off+ChunkHeaderSize > len(buf) {
		return 0, ChunkCursor{}, semierr.ErrHeaderOverflow
	}
	copy(buf[off:off+4], id[:])
	if err := PutUint32LE(buf, off+4, 0); err != nil {
		return 0, ChunkCursor{}, err
	}
	return off + ChunkHeaderSize, ChunkCursor{sizeOff: off + 4}, nil
}

// PatchChunkSize back-fills the size field recorded by cursor.
func PatchChunkSize(buf []byte, cursor ChunkCursor, payloadSize int) error {
	return PutUint32LE(buf, cursor.sizeOff, uint32(payloadSize))
}

// ChunkHeader is a decoded (but not yet interpreted) top-level or nested
// chunk: its tag, the offset and length of its payload, and the offset of
// the next chunk (including any pad byte).
type ChunkHeader struct {
	ID         FourCC
	PayloadOff int
	Size       int
	NextOff    int
}

// ReadChunkHeader reads a chunk id+size at off and validates that its
// payload does not cross end (exclusive). It never follows a size that
// would wrap or escape the container.
func ReadChunkHeader(buf []byte, off, end int) (ChunkHeader, error) {
	if off < 0 || off+ChunkHeaderSize > end || end > len(buf) {
		return ChunkHeader{}, semierr.ErrDataOverflow
	}
	var id FourCC
	copy(id[:], buf[off:off+4])
	size, err := Uint32LE(buf, off+4)
	if err != nil {
		return ChunkHeader{}, err
	}
	payloadOff := off + ChunkHeaderSize
	payloadEnd := payloadOff + int(size)
	if int(size) < 0 || payloadEnd < payloadOff || payloadEnd > end {
		return ChunkHeader{}, semierr.ErrDataOverflow
	}
	next := payloadOff + PadToEven(int(size))
	return ChunkHeader{ID: id, PayloadOff: payloadOff, Size: int(size), NextOff: next}, nil
}

// WriteRIFFHeader writes the 12-byte RIFF header (magic, placeholder size,
// form type) at offset 0 and returns a cursor for PatchRIFFSize.
func WriteRIFFHeader(buf []byte, form FourCC) (payloadOff int, cursor ChunkCursor, err error) {
	if len(buf) < RIFFHeaderSize {
		return 0, ChunkCursor{}, semierr.ErrHeaderOverflow
	}
	copy(buf[0:4], TagRIFF[:])
	if err := PutUint32LE(buf, 4, 0); err != nil {
		return 0, ChunkCursor{}, err
	}
	copy(buf[8:12], form[:])
	return RIFFHeaderSize, ChunkCursor{sizeOff: 4}, nil
}

// PatchRIFFSize back-fills the RIFF size field: the byte count of
// everything after the size field itself, i.e. the form tag plus all
// chunks.
func PatchRIFFSize(buf []byte, cursor ChunkCursor, totalSize int) error {
	return PutUint32LE(buf, cursor.sizeOff, uint32(totalSize))
}

// ReadRIFFHeader validates the 12-byte RIFF container header and returns
// the declared total size (bytes after the size field) and the form tag.
// It does not check the declared size against any buffer capacity —
// callers that need that (the parser against its input buffer, the host
// processor against its scratch buffer) check 8+size themselves, since
// the two failure modes (malformed header vs. oversized container) map
// to different outcomes.
func ReadRIFFHeader(buf []byte, bufSize int) (size int, form FourCC, err error) {
	if bufSize < RIFFHeaderSize || len(buf) < RIFFHeaderSize {
		return 0, FourCC{}, semierr.ErrBadRIFFMagic
	}
	var magic FourCC
	copy(magic[:], buf[0:4])
	if magic != TagRIFF {
		return 0, FourCC{}, semierr.ErrBadRIFFMagic
	}
	sz, err := Uint32LE(buf, 4)
	if err != nil {
		return 0, FourCC{}, err
	}
	if int(sz) < 0 {
		return 0, FourCC{}, semierr.ErrBadRIFFMagic
	}
	copy(form[:], buf[8:12])
	if form != TagSEMI {
		return 0, FourCC{}, semierr.ErrBadFormType
	}
	return int(sz), form, nil
}
