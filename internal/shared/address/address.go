// Package address holds the 20-byte account identifier used for funds,
// holders, assets and external contracts.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Length is the byte length of an address.
const Length = 20

// Address identifies an account or contract.
type Address [Length]byte

// Zero is the empty address.
var Zero Address

var ErrInvalid = errors.New("address must be 20 bytes of hex")

// Parse reads a hex address with or without the 0x prefix.
func Parse(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != Length*2 {
		return a, ErrInvalid
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, ErrInvalid
	}
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes takes the trailing 20 bytes of b.
func FromBytes(b []byte) Address {
	var a Address
	if len(b) > Length {
		b = b[len(b)-Length:]
	}
	copy(a[Length-len(b):], b)
	return a
}

// Derive produces a fresh address from a random seed, for newly created funds.
func Derive(namespace string) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(namespace))
	id := uuid.New()
	h.Write(id[:])
	return FromBytes(h.Sum(nil))
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Zero }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Strings renders a list of addresses.
func Strings(list []Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}

// ParseAll parses a list of hex addresses.
func ParseAll(list []string) ([]Address, error) {
	out := make([]Address, 0, len(list))
	for _, s := range list {
		a, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
