package port

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// WildcardHost is the IPv4 address meaning "every local interface".
	WildcardHost = "0.0.0.0"

	// MaxPort is the highest valid TCP/UDP port number (2^16 - 1).
	MaxPort = 65535
)

// Parse converts a decimal port string into a port number.
// Surrounding whitespace is ignored; signs, hex and values outside
// 1-65535 are rejected.
func Parse(value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("port must not be empty")
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid port %q: must be a decimal integer", value)
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", value, err)
	}
	if n < 1 || n > MaxPort {
		return 0, fmt.Errorf("invalid port %q: out of range (1-%d)", value, MaxPort)
	}
	return n, nil
}

// Resolve returns the port encoded in value, or fallback when value is
// empty. A non-empty value that does not parse is an error: it is never
// silently replaced by the fallback.
func Resolve(value string, fallback int) (int, error) {
	if strings.TrimSpace(value) == "" {
		if fallback < 1 || fallback > MaxPort {
			return 0, fmt.Errorf("default port %d out of range (1-%d)", fallback, MaxPort)
		}
		return fallback, nil
	}
	return Parse(value)
}
