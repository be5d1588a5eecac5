package health

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// DNSChecker sends a query to a DNS server and expects any well-formed
// answer. NXDOMAIN counts as healthy: the server is answering.
type DNSChecker struct {
	// Address is the server address (e.g., "127.0.0.1:5353")
	Address string

	// Name is the name to query (default: the root zone)
	Name string

	// Net is "udp" or "tcp" (default: udp)
	Net string

	Timeout time.Duration
}

// NewDNSChecker creates a new DNS health checker
func NewDNSChecker(address string) *DNSChecker {
	return &DNSChecker{
		Address: address,
		Name:    ".",
		Net:     "udp",
		Timeout: 2 * time.Second,
	}
}

// Check performs the DNS health check
func (d *DNSChecker) Check(ctx context.Context) Result {
	start := time.Now()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(d.Name), dns.TypeA)

	client := &dns.Client{Net: d.Net, Timeout: d.Timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, d.Address)
	if err != nil {
		return result(StatusUnhealthy, fmt.Sprintf("query failed: %v", err), start)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return result(StatusHealthy, fmt.Sprintf("DNS %s answered %s", d.Address, dns.RcodeToString[resp.Rcode]), start)
	case dns.RcodeServerFailure:
		return result(StatusDegraded, fmt.Sprintf("DNS %s answered SERVFAIL", d.Address), start)
	default:
		return result(StatusUnhealthy, fmt.Sprintf("DNS %s answered %s", d.Address, dns.RcodeToString[resp.Rcode]), start)
	}
}

// Type returns the health check type
func (d *DNSChecker) Type() CheckType {
	return CheckTypeDNS
}

// WithName sets the queried name
func (d *DNSChecker) WithName(name string) *DNSChecker {
	d.Name = name
	return d
}

// WithTimeout sets the query timeout
func (d *DNSChecker) WithTimeout(timeout time.Duration) *DNSChecker {
	d.Timeout = timeout
	return d
}
