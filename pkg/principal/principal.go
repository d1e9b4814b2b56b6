// Package principal defines the opaque identity handle used as the key for
// accounts, record authorship, and access grants throughout the ledger.
package principal

import (
	"fmt"
	"strings"
)

// Principal is a fixed-width hex identity handle ("0x" + 40 hex chars).
// The zero value is not a valid principal.
type Principal string

const hexLen = 40

// Parse validates and normalizes a principal handle. Handles are
// case-insensitive on input and stored lowercased.
func Parse(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if len(s) != hexLen+2 || !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("principal must be 0x followed by %d hex characters", hexLen)
	}
	body := strings.ToLower(s[2:])
	for _, r := range body {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("principal contains non-hex character %q", r)
		}
	}
	return Principal("0x" + body), nil
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(s string) Principal {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) String() string { return string(p) }

// IsZero reports whether p is the unset principal.
func (p Principal) IsZero() bool { return p == "" }

// Short returns an abbreviated display form ("0x1234…abcd") for log and
// activity descriptions.
func (p Principal) Short() string {
	s := string(p)
	if len(s) != hexLen+2 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}
