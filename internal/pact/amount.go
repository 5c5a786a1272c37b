package pact

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a fixed-point quantity with millesimal precision: the int64
// count of thousandths of a unit. 4500 means 4.5 hours, 500 used as a
// proportional rate means 0.5x.
//
// Floats are forbidden in the domain layer: fixed-point arithmetic makes
// convergence checks and reruns exact, and keeps canonical JSON (and hence
// content-addressed ids) deterministic. The engine's convergence tolerance
// of 1e-3 is exactly one milliunit.
type Amount int64

// Millis is the scaling factor between whole units and Amount.
const Millis = 1000

// MaxAmount is the largest representable Amount.
const MaxAmount = Amount(math.MaxInt64)

// FromUnits converts whole units to an Amount.
func FromUnits(units int64) Amount {
	return Amount(units * Millis)
}

// FromFloat converts a float to the nearest milliunit, rounding half away
// from zero. Use only at input boundaries (CUE numbers, YAML scenarios);
// all internal arithmetic stays in fixed point.
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * Millis))
}

// ParseAmount parses a decimal string ("10", "4.5", "0.001") into an Amount.
// More than three fractional digits are rounded half away from zero.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("parse amount: %q is not a number", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("parse amount: %q is not a number", s)
		}
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %q: %w", s, err)
	}

	var millis int64
	if hasFrac {
		if fracPart == "" {
			return 0, fmt.Errorf("parse amount: %q has a trailing decimal point", s)
		}
		for _, r := range fracPart {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("parse amount: %q is not a number", s)
			}
		}
		// Normalize the fraction to exactly three digits, then round on the fourth.
		digits := fracPart
		if len(digits) < 3 {
			digits += strings.Repeat("0", 3-len(digits))
		}
		millis, _ = strconv.ParseInt(digits[:3], 10, 64)
		if len(digits) > 3 && digits[3] >= '5' {
			millis++
		}
	}

	total := units*Millis + millis
	if neg {
		total = -total
	}
	return Amount(total), nil
}

// MustParseAmount is like ParseAmount but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MulRate scales the amount by a fixed-point rate (500 = 0.5x), rounding
// half away from zero. Both operands are expected to be nonnegative in
// engine arithmetic; negative operands round symmetrically.
func (a Amount) MulRate(rate Amount) Amount {
	prod := int64(a) * int64(rate)
	if prod >= 0 {
		return Amount((prod + Millis/2) / Millis)
	}
	return Amount((prod - Millis/2) / Millis)
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func (a Amount) Max(b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// String formats the amount as an exact decimal with trailing zeros
// trimmed: 10000 -> "10", 4500 -> "4.5", 1 -> "0.001".
func (a Amount) String() string {
	n := int64(a)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	units := n / Millis
	frac := n % Millis
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, units)
	}

	s := fmt.Sprintf("%s%d.%03d", sign, units, frac)
	return strings.TrimRight(s, "0")
}

// MarshalJSON emits the amount as an exact JSON number literal.
// The decimal rendering is deterministic, so amounts are safe inside
// canonical JSON used for content-addressed hashing.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
