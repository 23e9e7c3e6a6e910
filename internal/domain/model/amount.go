package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// AmountPrecision is the number of fractional digits kept for reward
// amounts. Anything finer is truncated.
const AmountPrecision = 6

const microsPerUnit = 1_000_000

// Amount is a non-negative token quantity stored as integer micro-units.
// The zero value is zero.
type Amount struct {
	micros sdkmath.Int
}

// ParseAmount parses a decimal string such as "0.003" and truncates it to
// six fractional digits.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if dec.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return Amount{micros: dec.MulInt64(microsPerUnit).TruncateInt()}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromMicros builds an amount from micro-units.
func AmountFromMicros(micros sdkmath.Int) (Amount, error) {
	if micros.IsNil() {
		return Amount{}, nil
	}
	if micros.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative micro-units", ErrInvalidAmount)
	}
	return Amount{micros: micros}, nil
}

// Micros returns the amount in micro-units.
func (a Amount) Micros() sdkmath.Int {
	if a.micros.IsNil() {
		return sdkmath.ZeroInt()
	}
	return a.micros
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.Micros().IsZero() }

// LT reports whether a < b.
func (a Amount) LT(b Amount) bool { return a.Micros().LT(b.Micros()) }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{micros: a.Micros().Add(b.Micros())} }

// MulInt returns a * n.
func (a Amount) MulInt(n int) Amount { return Amount{micros: a.Micros().MulRaw(int64(n))} }

// Split divides the amount into n equal shares truncated to six fractional
// digits. The remainder is dropped.
func (a Amount) Split(n int) Amount {
	if n <= 0 {
		return Amount{}
	}
	return Amount{micros: a.Micros().QuoRaw(int64(n))}
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.LT(b) {
		return b
	}
	return a
}

// String renders the amount with exactly six fractional digits.
func (a Amount) String() string {
	q, r := new(big.Int).QuoRem(a.Micros().BigInt(), big.NewInt(microsPerUnit), new(big.Int))
	return fmt.Sprintf("%s.%06d", q.String(), r.Int64())
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
