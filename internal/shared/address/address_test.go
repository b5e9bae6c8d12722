package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	a, err := Parse("0x00000000000000000000000000000000000000Ab")
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000ab", a.String())
	assert.False(t, a.IsZero())

	_, err = Parse("0x1234")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeriveIsUnique(t *testing.T) {
	a := Derive("fund")
	b := Derive("fund")
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}
