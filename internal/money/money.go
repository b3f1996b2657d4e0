// Package money provides exact fixed-point monetary amounts.
//
// Amounts are held as integer cents. Inputs are rounded to two decimal
// places (half away from zero, which is half-up for positive values) before
// any arithmetic, so sums never pick up binary floating-point drift.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in cents.
type Amount int64

const (
	// Zero is the zero amount.
	Zero Amount = 0
	// Cent is the smallest representable amount.
	Cent Amount = 1
	// Tolerance is the largest difference treated as equal (0.01).
	Tolerance = Cent
)

// ErrInvalidAmount reports a non-finite, out-of-range, malformed, or
// disallowed-zero monetary value.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	hundred = decimal.NewFromInt(100)
	limit   = decimal.NewFromInt(1_000_000)
)

// FromDecimal rounds d to cents. Values beyond ±1,000,000 are rejected.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	r := d.Round(2)
	if r.Abs().GreaterThan(limit) {
		return 0, fmt.Errorf("%w: %s exceeds ±%s", ErrInvalidAmount, d.String(), limit.String())
	}
	return Amount(r.Mul(hundred).IntPart()), nil
}

// FromFloat converts a float (e.g. decoded JSON) to cents.
func FromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite value", ErrInvalidAmount)
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a decimal string such as "12.34", "-5" or "1,250.00".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests. It panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cents returns the raw cent count.
func (a Amount) Cents() int64 { return int64(a) }

// Decimal returns the amount in currency units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats with exactly two decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }

// Neg returns -a.
func (a Amount) Neg() Amount { return -a }

// Abs returns |a|.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// NonZero fails with ErrInvalidAmount when the amount rounded to zero.
func (a Amount) NonZero() error {
	if a == 0 {
		return fmt.Errorf("%w: amount is zero", ErrInvalidAmount)
	}
	return nil
}

// MulDecimal multiplies by d and rounds the product back to cents.
func (a Amount) MulDecimal(d decimal.Decimal) Amount {
	return Amount(a.Decimal().Mul(d).Round(2).Mul(hundred).IntPart())
}

// Sum adds amounts exactly.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// NearlyEqual reports whether a and b differ by at most Tolerance.
func NearlyEqual(a, b Amount) bool {
	return (a - b).Abs() <= Tolerance
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*a = 0
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the amount as integer cents.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan reads integer cents.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		*a = Amount(v)
	case int32:
		*a = Amount(v)
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}

func (a *Amount) scanString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: scanning %q: %w", s, err)
	}
	*a = Amount(d.IntPart())
	return nil
}
