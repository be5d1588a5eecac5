package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

const (
	// forwardTimeout bounds a single upstream exchange
	forwardTimeout = 2 * time.Second

	// probeLabel is queried under the search domain by HealthCheck
	probeLabel = "joyride-health-probe"
)

// Query outcomes recorded in metrics.DNSQueries
const (
	outcomeAnswered  = "answered"
	outcomeNoData    = "nodata"
	outcomeNXDomain  = "nxdomain"
	outcomeForwarded = "forwarded"
	outcomeServFail  = "servfail"
)

// Server answers DNS queries from the record table and forwards
// everything outside it to the upstream servers
type Server struct {
	resolver   *Resolver
	listenAddr string
	upstream   []string
	logger     zerolog.Logger

	mu     sync.Mutex
	server *dns.Server
	addr   string // bound address, set while running
}

// NewServer creates a DNS server from its configuration section
func NewServer(lookup RecordLookup, cfg config.DNSConfig) *Server {
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &Server{
		resolver:   NewResolver(lookup, cfg.Domain, uint32(ttl)),
		listenAddr: cfg.Addr(),
		upstream:   append([]string(nil), cfg.Upstream...),
		logger:     log.WithComponent("dns"),
	}
}

// Start binds the UDP socket and serves until Stop
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("DNS server already running on %s", s.addr)
	}

	pc, err := net.ListenPacket("udp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleDNSQuery)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           mux,
		NotifyStartedFunc: func() { close(started) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ActivateAndServe()
	}()

	select {
	case <-started:
	case err := <-errCh:
		_ = pc.Close()
		return fmt.Errorf("DNS server failed to start: %w", err)
	case <-ctx.Done():
		_ = pc.Close()
		return ctx.Err()
	}

	go func() {
		if err := <-errCh; err != nil {
			s.logger.Error().Err(err).Msg("DNS server error")
		}
	}()

	s.server = server
	s.addr = pc.LocalAddr().String()

	s.logger.Info().
		Str("address", s.addr).
		Str("domain", s.resolver.domain).
		Strs("upstream", s.upstream).
		Msg("DNS server started")
	return nil
}

// Stop shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("stopping DNS server")

	err := s.server.ShutdownContext(ctx)
	s.server = nil
	s.addr = ""
	if err != nil {
		return fmt.Errorf("failed to stop DNS server: %w", err)
	}

	s.logger.Info().Msg("DNS server stopped")
	return nil
}

// Addr returns the bound address, or "" when stopped
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// IsRunning returns true if the DNS server is running
func (s *Server) IsRunning() bool {
	return s.Addr() != ""
}

// HealthCheck queries the server over its own socket. The probe name sits
// under the search domain, so the answer never depends on an upstream.
func (s *Server) HealthCheck(ctx context.Context) (health.Status, error) {
	addr := s.Addr()
	if addr == "" {
		return health.StatusUnhealthy, fmt.Errorf("DNS server not running")
	}

	name := probeLabel
	if s.resolver.domain != "" {
		name += "." + s.resolver.domain
	}
	result := health.NewDNSChecker(addr).WithName(name).Check(ctx)
	if !result.Healthy() {
		return result.Status, errors.New(result.Message)
	}
	return result.Status, nil
}

// handleDNSQuery handles incoming DNS queries
func (s *Server) handleDNSQuery(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) == 0 {
		msg := new(dns.Msg)
		msg.SetRcode(r, dns.RcodeFormatError)
		s.write(w, msg)
		return
	}

	q := r.Question[0]
	s.logger.Debug().
		Str("query", q.Name).
		Str("type", dns.TypeToString[q.Qtype]).
		Msg("DNS query received")

	answers, found := s.resolver.Resolve(q)
	switch {
	case found:
		msg := new(dns.Msg)
		msg.SetReply(r)
		msg.Authoritative = true
		msg.Answer = answers
		if len(answers) == 0 {
			s.count(outcomeNoData)
		} else {
			s.count(outcomeAnswered)
		}
		s.write(w, msg)

	case s.resolver.InDomain(q.Name):
		msg := new(dns.Msg)
		msg.SetRcode(r, dns.RcodeNameError)
		msg.Authoritative = true
		s.count(outcomeNXDomain)
		s.write(w, msg)

	default:
		s.forwardQuery(w, r)
	}
}

// forwardQuery forwards a DNS query to upstream DNS servers, answering
// SERVFAIL when none of them responds
func (s *Server) forwardQuery(w dns.ResponseWriter, r *dns.Msg) {
	client := &dns.Client{Net: "udp", Timeout: forwardTimeout}

	for _, upstream := range s.upstream {
		resp, _, err := client.Exchange(r, upstream)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("upstream", upstream).
				Msg("failed to forward query to upstream")
			continue
		}

		s.count(outcomeForwarded)
		s.write(w, resp)
		return
	}

	msg := new(dns.Msg)
	msg.SetRcode(r, dns.RcodeServerFailure)
	s.count(outcomeServFail)
	s.write(w, msg)
}

func (s *Server) write(w dns.ResponseWriter, msg *dns.Msg) {
	if err := w.WriteMsg(msg); err != nil {
		s.logger.Error().Err(err).Msg("failed to write DNS response")
	}
}

func (s *Server) count(outcome string) {
	metrics.DNSQueries.WithLabelValues(outcome).Inc()
}
