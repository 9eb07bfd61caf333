package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes(t *testing.T) {
	// Concatenation is what gets hashed
	assert.Equal(t, HashBytes([]byte("ab"), []byte("c")), HashBytes([]byte("abc")))
	assert.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
	assert.NotEqual(t, ZeroHash, HashBytes())
}

func TestAccountIdFromString(t *testing.T) {
	alice := AccountIdFromSeed("alice")

	parsed, err := AccountIdFromString("0x" + alice.String())
	require.NoError(t, err)
	assert.Equal(t, alice, parsed)

	_, err = AccountIdFromString("0x1234")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	h := HashBytes([]byte("code"))
	ph, err := HashFromString(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, ph)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc, err := Encode(uint32(7))
	require.NoError(t, err)

	var v uint32
	require.NoError(t, Decode(enc, &v))
	assert.Equal(t, uint32(7), v)

	err = Decode(append(enc, 0x01), &v)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestUnitEncoding(t *testing.T) {
	enc, err := Encode(Unit{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc0}, enc)
}

func TestTrap(t *testing.T) {
	trap := NewTrapErr(TrapDispatch, ErrInvalidArgument)
	assert.True(t, errors.Is(trap, ErrInvalidArgument))
	assert.Equal(t, "trap: dispatch: invalid argument", trap.Error())
	assert.Equal(t, "trap(200)", TrapReason(200).String())

	assert.PanicsWithError(t, "trap: abort: boom 1", func() {
		Abort("boom %d", 1)
	})
}

func TestCalleeRevertedError(t *testing.T) {
	var err error = &CalleeRevertedError{Data: []byte{1, 2}}
	assert.ErrorIs(t, err, ErrCalleeReverted)

	var rev *CalleeRevertedError
	require.True(t, errors.As(err, &rev))
	assert.Equal(t, []byte{1, 2}, rev.Data)
}
