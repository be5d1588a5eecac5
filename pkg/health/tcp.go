package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker checks that a TCP listener accepts connections
type TCPChecker struct {
	// Address is the TCP address to connect to (e.g., "127.0.0.1:8080")
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP health checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check performs the TCP health check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return result(StatusUnhealthy, fmt.Sprintf("connection failed: %v", err), start)
	}
	defer conn.Close()

	return result(StatusHealthy, fmt.Sprintf("TCP connection to %s successful", t.Address), start)
}

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
