// Package calldata encodes and decodes call payloads for external protocol
// calls: a 4-byte keccak selector followed by 32-byte argument words.
package calldata

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"golang.org/x/crypto/sha3"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

const (
	SelectorLength = 4
	WordLength     = 32
)

var (
	ErrShortPayload = errors.New("calldata shorter than selector")
	ErrArgument     = errors.New("calldata argument out of range")
)

// Selector is the first four bytes of a call payload.
type Selector [SelectorLength]byte

// SelectorOf hashes a canonical signature such as "approve(address,uint256)".
func SelectorOf(signature string) Selector {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var s Selector
	copy(s[:], h.Sum(nil))
	return s
}

func (s Selector) String() string { return fmt.Sprintf("0x%x", s[:]) }

var (
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
	two255 = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Encoder appends argument words after a selector.
type Encoder struct {
	buf []byte
}

// NewCall starts a payload for signature.
func NewCall(signature string) *Encoder {
	s := SelectorOf(signature)
	return &Encoder{buf: append([]byte(nil), s[:]...)}
}

func (e *Encoder) Address(a address.Address) *Encoder {
	var w [WordLength]byte
	copy(w[WordLength-address.Length:], a[:])
	e.buf = append(e.buf, w[:]...)
	return e
}

// Uint appends an unsigned word; negative values are rejected at Bytes time.
func (e *Encoder) Uint(v sdkmath.Int) *Encoder {
	var w [WordLength]byte
	if !v.IsNil() && !v.IsNegative() {
		v.BigInt().FillBytes(w[:])
	}
	e.buf = append(e.buf, w[:]...)
	return e
}

// Int appends a two's complement signed word.
func (e *Encoder) Int(v sdkmath.Int) *Encoder {
	var w [WordLength]byte
	if !v.IsNil() {
		b := v.BigInt()
		if b.Sign() < 0 {
			b = new(big.Int).Add(b, two256)
		}
		b.FillBytes(w[:])
	}
	e.buf = append(e.buf, w[:]...)
	return e
}

func (e *Encoder) Bytes() []byte { return e.buf }

// Decoder reads a payload produced by Encoder.
type Decoder struct {
	selector Selector
	args     []byte
}

// Decode splits data into selector and argument words.
func Decode(data []byte) (*Decoder, error) {
	if len(data) < SelectorLength {
		return nil, ErrShortPayload
	}
	d := &Decoder{args: data[SelectorLength:]}
	copy(d.selector[:], data[:SelectorLength])
	return d, nil
}

func (d *Decoder) Selector() Selector { return d.selector }

func (d *Decoder) word(i int) ([]byte, error) {
	start := i * WordLength
	if i < 0 || start+WordLength > len(d.args) {
		return nil, fmt.Errorf("%w: word %d", ErrArgument, i)
	}
	return d.args[start : start+WordLength], nil
}

func (d *Decoder) Address(i int) (address.Address, error) {
	w, err := d.word(i)
	if err != nil {
		return address.Zero, err
	}
	for _, b := range w[:WordLength-address.Length] {
		if b != 0 {
			return address.Zero, fmt.Errorf("%w: word %d is not an address", ErrArgument, i)
		}
	}
	return address.FromBytes(w), nil
}

func (d *Decoder) Uint(i int) (sdkmath.Int, error) {
	w, err := d.word(i)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).SetBytes(w)), nil
}

func (d *Decoder) Int(i int) (sdkmath.Int, error) {
	w, err := d.word(i)
	if err != nil {
		return sdkmath.Int{}, err
	}
	b := new(big.Int).SetBytes(w)
	if b.Cmp(two255) >= 0 {
		b.Sub(b, two256)
	}
	return sdkmath.NewIntFromBigInt(b), nil
}
