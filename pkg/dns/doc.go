/*
Package dns serves the record table over DNS.

The server is a miekg/dns UDP server. Names found in the record table are
answered authoritatively; names under the search domain that the table does
not know get NXDOMAIN; everything else is forwarded to the upstream servers.

# Architecture

	┌──────────────────────── DNS Server ─────────────────────────┐
	│  UDP socket (dns.host:dns.port)                               │
	└──────┬──────────────────────────────────────────────────────┘
	       │ query
	       ▼
	┌──────────────┐  found   ┌──────────────────────────────────┐
	│   Resolver   │ ───────► │ A / AAAA, TTL = dns.ttl, AA bit  │
	│ (records.    │          └──────────────────────────────────┘
	│  Table)      │  in domain, not found ──► NXDOMAIN
	└──────┬───────┘
	       │ outside domain
	       ▼
	  upstream[0], upstream[1], ...  ──► first answer, else SERVFAIL

# Name Resolution

A query name is looked up as sent, then with the search domain stripped, so
a record for "web" answers both of:

	web.          60 IN A 10.0.0.5
	web.joyride.  60 IN A 10.0.0.5

Wildcard records (*.apps) are matched by the table. A known name queried for
a type it has no address of (AAAA for an IPv4 record, MX, TXT) returns an
empty NOERROR answer.

# Health

HealthCheck sends a query for a probe name under the search domain to the
server's own socket. The table answers it or the server returns NXDOMAIN;
either way no upstream is involved, so an unreachable upstream does not make
the server unhealthy.

# Metrics

Every query increments joyride_dns_queries_total with one of the outcomes
answered, nodata, nxdomain, forwarded or servfail.
*/
package dns
