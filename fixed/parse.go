package fixed

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrBadDecimal signals a string that does not parse as a decimal number at
// the requested scale.
var ErrBadDecimal = errors.New("fixed: malformed decimal")

// ParseWad parses a decimal string like "7.61" into a Wad quantity.
func ParseWad(s string) (*big.Int, error) { return parseDecimal(s, 18) }

// ParseRay parses a decimal string like "0.05" into a Ray ratio.
func ParseRay(s string) (*big.Int, error) { return parseDecimal(s, 27) }

// ParseRad parses a decimal string into a Rad monetary amount.
func ParseRad(s string) (*big.Int, error) { return parseDecimal(s, 45) }

func parseDecimal(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrBadDecimal)
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadDecimal, s)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrBadDecimal, s, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDecimal, s)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}
