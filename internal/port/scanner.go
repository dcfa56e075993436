package port

import (
	"fmt"
	"net"
	"strconv"
)

// Scanner checks whether specific ports can be bound on a host address.
//
// It asks the operating system directly via net.Listen instead of parsing
// /proc/net/* or shelling out to `ss` or `lsof`.
type Scanner struct {
	// host is the address probed, "0.0.0.0" when empty.
	host string
}

// NewScanner creates a Scanner that probes the wildcard address, which is
// where the hand-off target binds.
func NewScanner() *Scanner {
	return &Scanner{host: WildcardHost}
}

// NewScannerForHost creates a Scanner bound to a specific host address.
func NewScannerForHost(host string) *Scanner {
	if host == "" {
		host = WildcardHost
	}
	return &Scanner{host: host}
}

// Host returns the address the scanner probes.
func (s *Scanner) Host() string {
	return s.host
}

// IsPortAvailable reports whether a TCP port is free on the scanner's host.
// A successful net.Listen means the port is available; the listener is
// closed immediately. Out-of-range ports are never available.
func (s *Scanner) IsPortAvailable(port int) bool {
	if port < 1 || port > MaxPort {
		return false
	}
	return s.CheckBindable(port) == nil
}

// CheckBindable reports why a TCP port cannot be bound, or nil if it can.
// Unlike IsPortAvailable it keeps the underlying error, which the start
// preflight surfaces to the operator.
func (s *Scanner) CheckBindable(port int) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot bind %s: %w", addr, err)
	}
	return listener.Close()
}

// FindAvailablePort scans a port range [startPort, endPort] (inclusive) and
// returns the first port that is available.
//
// The search is sequential from startPort upward, so the same free port is
// selected consistently.
func (s *Scanner) FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, endPort)
}
