package types

import (
	"math/big"

	"github.com/pkg/errors"
)

// U256 is an unbounded non-negative quantity (gas limits, fees, base gas).
// It wraps math/big.Int rather than a fixed-width array, and every
// arithmetic op here rejects negative results rather than silently
// wrapping.
type U256 struct {
	v big.Int
}

// ZeroU256 returns the zero value.
func ZeroU256() U256 {
	return U256{}
}

// NewU256FromUint64 builds a U256 from a uint64.
func NewU256FromUint64(n uint64) U256 {
	var u U256
	u.v.SetUint64(n)
	return u
}

// NewU256FromBytes builds a U256 from a big-endian byte slice.
func NewU256FromBytes(b []byte) U256 {
	var u U256
	u.v.SetBytes(b)
	return u
}

// Bytes returns the big-endian byte representation with no leading zeros
// (empty slice for zero).
func (u U256) Bytes() []byte {
	return u.v.Bytes()
}

// Uint64 returns the value truncated to a uint64; callers must ensure the
// value actually fits (gas limits and fees in this system always do).
func (u U256) Uint64() uint64 {
	return u.v.Uint64()
}

// Cmp compares u to o the same way big.Int.Cmp does.
func (u U256) Cmp(o U256) int {
	return u.v.Cmp(&o.v)
}

// IsZero reports whether the value is zero.
func (u U256) IsZero() bool {
	return u.v.Sign() == 0
}

// Add returns u+o.
func (u U256) Add(o U256) U256 {
	var r U256
	r.v.Add(&u.v, &o.v)
	return r
}

// Sub returns u-o, erroring if the result would be negative.
func (u U256) Sub(o U256) (U256, error) {
	var r U256
	r.v.Sub(&u.v, &o.v)
	if r.v.Sign() < 0 {
		return U256{}, errors.New("u256 subtraction underflow")
	}
	return r, nil
}

// Mul returns u*o.
func (u U256) Mul(o U256) U256 {
	var r U256
	r.v.Mul(&u.v, &o.v)
	return r
}

// Min returns whichever of u, o is smaller.
func (u U256) Min(o U256) U256 {
	if u.Cmp(o) <= 0 {
		return u
	}
	return o
}

// String renders the decimal representation.
func (u U256) String() string {
	return u.v.String()
}

// MarshalJSON renders the decimal representation as a JSON string, since
// the value may exceed a JSON number's safe precision.
func (u U256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.v.String() + `"`), nil
}

// UnmarshalJSON parses the decimal string produced by MarshalJSON.
func (u *U256) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("u256: expected JSON string")
	}
	if _, ok := u.v.SetString(string(data[1:len(data)-1]), 10); !ok {
		return errors.New("u256: invalid decimal string")
	}
	return nil
}
