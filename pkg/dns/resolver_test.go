package dns

import (
	"testing"

	"github.com/cuemby/joyride/pkg/records"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLookup map[string]string

func (s staticLookup) Lookup(hostname string) (*records.Record, bool) {
	ip, ok := s[records.Normalize(hostname)]
	if !ok {
		return nil, false
	}
	rec, err := records.NewRecord(hostname, ip, records.OriginStatic, "test")
	if err != nil {
		return nil, false
	}
	return rec, true
}

func question(name string, qtype uint16) dns.Question {
	return dns.Question{Name: dns.Fqdn(name), Qtype: qtype, Qclass: dns.ClassINET}
}

// TestResolverStripDomain tests domain suffix removal
func TestResolverStripDomain(t *testing.T) {
	r := NewResolver(staticLookup{}, "joyride", 60)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "with domain suffix", input: "web.joyride", want: "web"},
		{name: "without domain suffix", input: "web", want: "web"},
		{name: "empty string", input: "", want: ""},
		{name: "multiple labels", input: "api.web.joyride", want: "api.web"},
		{name: "domain as substring", input: "web.notjoyride", want: "web.notjoyride"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.stripDomain(tt.input))
		})
	}
}

// TestResolverMakeFQDN tests FQDN generation
func TestResolverMakeFQDN(t *testing.T) {
	r := NewResolver(staticLookup{}, "joyride", 60)

	assert.Equal(t, "web.", r.makeFQDN("web"))
	assert.Equal(t, "web.", r.makeFQDN("web."))
	assert.Equal(t, "web.joyride.", r.makeFQDN("web.joyride"))
}

// TestResolverInDomain tests search domain membership
func TestResolverInDomain(t *testing.T) {
	r := NewResolver(staticLookup{}, ".Joyride.", 60)

	assert.True(t, r.InDomain("web.joyride."))
	assert.True(t, r.InDomain("JOYRIDE"))
	assert.False(t, r.InDomain("example.com"))
	assert.False(t, r.InDomain("notjoyride"))

	empty := NewResolver(staticLookup{}, "", 60)
	assert.False(t, empty.InDomain("web"))
}

// TestResolve tests answers built from the record table
func TestResolve(t *testing.T) {
	lookup := staticLookup{
		"web":         "10.0.0.5",
		"db.joyride":  "10.0.0.6",
		"v6":          "fd00::1",
		"example.com": "192.0.2.1",
	}
	r := NewResolver(lookup, "joyride", 30)

	tests := []struct {
		name      string
		q         dns.Question
		wantFound bool
		wantIP    string
	}{
		{name: "bare name", q: question("web", dns.TypeA), wantFound: true, wantIP: "10.0.0.5"},
		{name: "domain stripped", q: question("web.joyride", dns.TypeA), wantFound: true, wantIP: "10.0.0.5"},
		{name: "full name record", q: question("db.joyride", dns.TypeA), wantFound: true, wantIP: "10.0.0.6"},
		{name: "case insensitive", q: question("WEB.Joyride", dns.TypeA), wantFound: true, wantIP: "10.0.0.5"},
		{name: "outside domain", q: question("example.com", dns.TypeA), wantFound: true, wantIP: "192.0.2.1"},
		{name: "ipv6 record", q: question("v6.joyride", dns.TypeAAAA), wantFound: true, wantIP: "fd00::1"},
		{name: "aaaa for ipv4 is nodata", q: question("web", dns.TypeAAAA), wantFound: true},
		{name: "a for ipv6 is nodata", q: question("v6", dns.TypeA), wantFound: true},
		{name: "mx is nodata", q: question("web", dns.TypeMX), wantFound: true},
		{name: "unknown", q: question("missing.joyride", dns.TypeA), wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers, found := r.Resolve(tt.q)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantIP == "" {
				assert.Empty(t, answers)
				return
			}

			require.Len(t, answers, 1)
			hdr := answers[0].Header()
			assert.Equal(t, dns.Fqdn(records.Normalize(tt.q.Name)), hdr.Name)
			assert.Equal(t, tt.q.Qtype, hdr.Rrtype)
			assert.Equal(t, uint32(30), hdr.Ttl)

			switch rr := answers[0].(type) {
			case *dns.A:
				assert.Equal(t, tt.wantIP, rr.A.String())
			case *dns.AAAA:
				assert.Equal(t, tt.wantIP, rr.AAAA.String())
			default:
				t.Fatalf("unexpected record type %T", rr)
			}
		})
	}
}
