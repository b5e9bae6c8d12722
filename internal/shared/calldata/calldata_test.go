package calldata

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

func TestSelectorOfKnownSignature(t *testing.T) {
	s := SelectorOf("approve(address,uint256)")
	assert.Equal(t, "0x095ea7b3", s.String())

	s = SelectorOf("transfer(address,uint256)")
	assert.Equal(t, "0xa9059cbb", s.String())
}

func TestEncodeDecodeArguments(t *testing.T) {
	spender := address.MustParse("0x00000000000000000000000000000000000000aa")
	payload := NewCall("transferMargin(int256)").Int(sdkmath.NewInt(-42)).Bytes()
	require.Len(t, payload, SelectorLength+WordLength)

	dec, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, SelectorOf("transferMargin(int256)"), dec.Selector())
	v, err := dec.Int(0)
	require.NoError(t, err)
	assert.Equal(t, "-42", v.String())

	payload = NewCall("approve(address,uint256)").Address(spender).Uint(sdkmath.NewInt(7)).Bytes()
	dec, err = Decode(payload)
	require.NoError(t, err)
	got, err := dec.Address(0)
	require.NoError(t, err)
	assert.Equal(t, spender, got)
	amount, err := dec.Uint(1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), amount.Int64())

	_, err = dec.Uint(2)
	assert.ErrorIs(t, err, ErrArgument)
}

func TestDecodeShortPayload(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortPayload)
}
