package common

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount parses a base-10 unsigned integer amount in token base units.
// A "0x" prefix switches to hexadecimal, matching what wallet tooling sends.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return v, nil
}

// ParseOptionalAmount treats an empty string as zero, the "leave unchanged"
// sentinel of the update entry points.
func ParseOptionalAmount(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(big.Int), nil
	}
	return ParseAmount(s)
}
