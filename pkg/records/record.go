package records

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Origin says which producer owns a record
type Origin string

const (
	OriginContainer Origin = "container"
	OriginHosts     Origin = "hosts"
	OriginStatic    Origin = "static"
)

// Record maps a hostname to an address
type Record struct {
	Hostname  string    `json:"hostname"`
	IP        string    `json:"ip"`
	Origin    Origin    `json:"origin"`
	Source    string    `json:"source,omitempty"` // container ID or hosts file
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord validates and normalizes a record
func NewRecord(hostname, ip string, origin Origin, source string) (*Record, error) {
	name := Normalize(hostname)
	if name == "" {
		return nil, fmt.Errorf("hostname is required")
	}
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return nil, fmt.Errorf("invalid IP address for %s: %q", name, ip)
	}
	return &Record{
		Hostname:  name,
		IP:        addr.String(),
		Origin:    origin,
		Source:    source,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Addr returns the parsed IP
func (r *Record) Addr() net.IP {
	return net.ParseIP(r.IP)
}

// IsIPv4 reports whether the record answers A queries
func (r *Record) IsIPv4() bool {
	return r.Addr().To4() != nil
}

// Normalize lowercases a hostname and strips the trailing dot
func Normalize(hostname string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
}

// matchWildcard checks if a wildcard pattern matches a host:
// *.example.com matches foo.example.com but not example.com
func matchWildcard(pattern, host string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	suffix := pattern[1:]
	return strings.HasSuffix(host, suffix)
}
