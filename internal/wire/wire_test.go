package wire

import (
	"testing"

	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntRoundTrip(t *testing.T) {
	widths := []int{1, 2, 4, 8}
	endians := []Endianness{Little, Big}

	cases := []int64{0, 1, -1, 42, -42, 127, -128}
	for _, width := range widths {
		for _, end := range endians {
			for _, v := range cases {
				buf := make([]byte, width)
				maxMag := int64(1) << (uint(width)*8 - 1)
				if v >= maxMag || v < -maxMag {
					continue
				}
				require.NoError(t, WriteInt(buf, 0, v, width, end))
				got, err := ReadInt(buf, 0, width, end, true)
				require.NoError(t, err)
				assert.Equal(t, v, got, "width=%d endian=%d v=%d", width, end, v)
			}
		}
	}
}

func TestReadIntSignExtension(t *testing.T) {
	buf := []byte{0xFE, 0xFF}
	v, err := ReadInt(buf, 0, 2, Little, true)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)

	uv, err := ReadInt(buf, 0, 2, Little, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0xFFFE), uv)
}

func TestPadToEven(t *testing.T) {
	assert.Equal(t, 0, PadToEven(0))
	assert.Equal(t, 2, PadToEven(1))
	assert.Equal(t, 2, PadToEven(2))
	assert.Equal(t, 4, PadToEven(3))
}

func TestChunkHeaderOffsetMath(t *testing.T) {
	buf := make([]byte, 64)
	payloadOff, cursor, err := WriteChunkHeader(buf, 0, TagDATA)
	require.NoError(t, err)
	assert.Equal(t, ChunkHeaderSize, payloadOff)

	payload := []byte{1, 2, 3}
	copy(buf[payloadOff:], payload)
	require.NoError(t, PatchChunkSize(buf, cursor, len(payload)))

	nextOff := payloadOff + PadToEven(len(payload))
	assert.Equal(t, 12, nextOff)

	hdr, err := ReadChunkHeader(buf, 0, len(buf))
	require.NoError(t, err)
	assert.Equal(t, TagDATA, hdr.ID)
	assert.Equal(t, 3, hdr.Size)
	assert.Equal(t, nextOff, hdr.NextOff)
}

func TestWriteIntBufferFull(t *testing.T) {
	buf := make([]byte, 3)
	err := WriteInt(buf, 0, 1, 4, Little)
	assert.ErrorIs(t, err, semierr.ErrBufferFull)
}
