package optable

import (
	"testing"

	"github.com/johnwbyrd/semihost/internal/semierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownOpcodes(t *testing.T) {
	row, err := Lookup(OpOpen)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", row.Name)
	assert.Len(t, row.Args, 3)

	row, err = Lookup(OpElapsed)
	require.NoError(t, err)
	assert.Equal(t, RespElapsed, row.Response)
}

func TestLookupUnknownOpcode(t *testing.T) {
	_, err := Lookup(Opcode(0x77))
	assert.ErrorIs(t, err, semierr.ErrUnknownOpcode)
}

func TestEveryOpcodeHasUniqueRow(t *testing.T) {
	seen := map[Opcode]bool{}
	for _, row := range Table {
		assert.False(t, seen[row.Op], "duplicate opcode %v", row.Op)
		seen[row.Op] = true
	}
}
