package dns

import (
	"strings"

	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/records"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// RecordLookup is the read side of the record table
type RecordLookup interface {
	Lookup(hostname string) (*records.Record, bool)
}

// Resolver answers questions from the record table
type Resolver struct {
	records RecordLookup
	domain  string // search domain (e.g., "joyride")
	ttl     uint32
	logger  zerolog.Logger
}

// NewResolver creates a resolver over lookup
func NewResolver(lookup RecordLookup, domain string, ttl uint32) *Resolver {
	return &Resolver{
		records: lookup,
		domain:  strings.Trim(strings.ToLower(domain), "."),
		ttl:     ttl,
		logger:  log.WithComponent("dns.resolver"),
	}
}

// Resolve answers q. found is false when no record matches the name, in
// which case the caller decides between NXDOMAIN and forwarding. A found
// name with no answers is NODATA (e.g. an AAAA query for an IPv4 record).
func (r *Resolver) Resolve(q dns.Question) (answers []dns.RR, found bool) {
	name := records.Normalize(q.Name)

	rec, ok := r.records.Lookup(name)
	if !ok && r.InDomain(name) {
		rec, ok = r.records.Lookup(r.stripDomain(name))
	}
	if !ok {
		return nil, false
	}

	r.logger.Debug().
		Str("query", name).
		Str("ip", rec.IP).
		Str("origin", string(rec.Origin)).
		Msg("resolved from record table")

	hdr := dns.RR_Header{
		Name:  r.makeFQDN(name),
		Class: dns.ClassINET,
		Ttl:   r.ttl,
	}
	addr := rec.Addr()
	switch {
	case q.Qtype == dns.TypeA && rec.IsIPv4():
		hdr.Rrtype = dns.TypeA
		return []dns.RR{&dns.A{Hdr: hdr, A: addr.To4()}}, true
	case q.Qtype == dns.TypeAAAA && !rec.IsIPv4():
		hdr.Rrtype = dns.TypeAAAA
		return []dns.RR{&dns.AAAA{Hdr: hdr, AAAA: addr}}, true
	default:
		return nil, true
	}
}

// InDomain reports whether name sits under the search domain
func (r *Resolver) InDomain(name string) bool {
	name = records.Normalize(name)
	return r.domain != "" && (name == r.domain || strings.HasSuffix(name, "."+r.domain))
}

// stripDomain removes the search domain suffix from a name
// web.joyride -> web
// web -> web
func (r *Resolver) stripDomain(name string) string {
	return strings.TrimSuffix(name, "."+r.domain)
}

// makeFQDN ensures a name ends with a dot (fully qualified)
func (r *Resolver) makeFQDN(name string) string {
	if !strings.HasSuffix(name, ".") {
		return name + "."
	}
	return name
}
