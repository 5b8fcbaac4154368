package dns

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// Server is a DNS sinkhole. Domains in the block set resolve to
// 0.0.0.0; everything else is forwarded upstream. The block set is
// replaced wholesale by SetBlockRules whenever enforcement state
// changes.
type Server struct {
	cfg             config.DNSConfig
	logger          zerolog.Logger
	upstreamTimeout time.Duration

	mu      sync.RWMutex
	blocked map[string]struct{}

	udpServer *dns.Server
	tcpServer *dns.Server
}

// NewServer creates a DNS sinkhole server
func NewServer(cfg config.DNSConfig, logger zerolog.Logger) (*Server, error) {
	timeout, err := time.ParseDuration(cfg.UpstreamTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream_timeout: %w", err)
	}

	if len(cfg.UpstreamServers) == 0 {
		return nil, fmt.Errorf("at least one upstream DNS server is required")
	}

	return &Server{
		cfg:             cfg,
		logger:          logger.With().Str("component", "dns").Logger(),
		upstreamTimeout: timeout,
		blocked:         make(map[string]struct{}),
	}, nil
}

// SetBlockRules replaces the block set
func (s *Server) SetBlockRules(domains []string) error {
	blocked := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSuffix(domain, "."))
		if domain == "" {
			continue
		}
		blocked[domain] = struct{}{}
	}

	s.mu.Lock()
	s.blocked = blocked
	s.mu.Unlock()

	s.logger.Info().Int("domains", len(blocked)).Msg("Block rules updated")
	return nil
}

// isBlocked reports whether name or any parent domain is in the block
// set, so a blocked example.com also sinks www.example.com.
func (s *Server) isBlocked(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for name != "" {
		if _, ok := s.blocked[name]; ok {
			return true
		}
		idx := strings.Index(name, ".")
		if idx < 0 {
			break
		}
		name = name[idx+1:]
	}
	return false
}

// Start starts the configured UDP and TCP listeners. Blocks until one
// of them fails or Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)

	handler := dns.HandlerFunc(s.handleQuery)
	errChan := make(chan error, 2)

	if s.cfg.EnableUDP {
		s.udpServer = &dns.Server{Addr: addr, Net: "udp", Handler: handler}
		go func() {
			s.logger.Info().Str("addr", addr).Msg("Starting DNS server (UDP)")
			if err := s.udpServer.ListenAndServe(); err != nil {
				errChan <- fmt.Errorf("udp server: %w", err)
			}
		}()
	}

	if s.cfg.EnableTCP {
		s.tcpServer = &dns.Server{Addr: addr, Net: "tcp", Handler: handler}
		go func() {
			s.logger.Info().Str("addr", addr).Msg("Starting DNS server (TCP)")
			if err := s.tcpServer.ListenAndServe(); err != nil {
				errChan <- fmt.Errorf("tcp server: %w", err)
			}
		}()
	}

	if !s.cfg.EnableUDP && !s.cfg.EnableTCP {
		return fmt.Errorf("dns server requires udp or tcp to be enabled")
	}

	return <-errChan
}

// ServeListeners starts the server on pre-bound listeners, used with
// socket activation. Either listener may be nil.
func (s *Server) ServeListeners(udpConn net.PacketConn, tcpListener net.Listener) error {
	handler := dns.HandlerFunc(s.handleQuery)
	errChan := make(chan error, 2)

	if udpConn != nil {
		s.udpServer = &dns.Server{PacketConn: udpConn, Handler: handler}
		go func() {
			s.logger.Info().Str("addr", udpConn.LocalAddr().String()).Msg("Starting DNS server on inherited socket (UDP)")
			if err := s.udpServer.ActivateAndServe(); err != nil {
				errChan <- fmt.Errorf("udp server: %w", err)
			}
		}()
	}

	if tcpListener != nil {
		s.tcpServer = &dns.Server{Listener: tcpListener, Handler: handler}
		go func() {
			s.logger.Info().Str("addr", tcpListener.Addr().String()).Msg("Starting DNS server on inherited socket (TCP)")
			if err := s.tcpServer.ActivateAndServe(); err != nil {
				errChan <- fmt.Errorf("tcp server: %w", err)
			}
		}()
	}

	if udpConn == nil && tcpListener == nil {
		return fmt.Errorf("dns server requires at least one listener")
	}

	return <-errChan
}

// Stop shuts down the listeners
func (s *Server) Stop() {
	if s.udpServer != nil {
		_ = s.udpServer.Shutdown()
	}
	if s.tcpServer != nil {
		_ = s.tcpServer.Shutdown()
	}
}

func (s *Server) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) == 0 {
		msg := new(dns.Msg)
		msg.SetRcode(r, dns.RcodeFormatError)
		_ = w.WriteMsg(msg)
		return
	}

	question := r.Question[0]
	name := question.Name

	if s.isBlocked(name) {
		metrics.DNSQueriesTotal.WithLabelValues("blocked").Inc()
		s.logger.Debug().Str("name", name).Msg("Query sinkholed")
		_ = w.WriteMsg(s.blockedResponse(r, question))
		return
	}

	resp, err := s.forward(r)
	if err != nil {
		metrics.DNSQueriesTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("name", name).Msg("Upstream resolution failed")
		msg := new(dns.Msg)
		msg.SetRcode(r, dns.RcodeServerFailure)
		_ = w.WriteMsg(msg)
		return
	}

	metrics.DNSQueriesTotal.WithLabelValues("forwarded").Inc()
	_ = w.WriteMsg(resp)
}

// blockedResponse answers A and AAAA queries with the null address;
// other types get an empty NOERROR answer.
func (s *Server) blockedResponse(r *dns.Msg, question dns.Question) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true

	header := dns.RR_Header{
		Name:   question.Name,
		Rrtype: question.Qtype,
		Class:  dns.ClassINET,
		Ttl:    s.cfg.BlockTTL,
	}

	switch question.Qtype {
	case dns.TypeA:
		msg.Answer = append(msg.Answer, &dns.A{Hdr: header, A: net.IPv4zero})
	case dns.TypeAAAA:
		msg.Answer = append(msg.Answer, &dns.AAAA{Hdr: header, AAAA: net.IPv6zero})
	}

	return msg
}

// forward tries each upstream in order until one answers
func (s *Server) forward(r *dns.Msg) (*dns.Msg, error) {
	client := &dns.Client{Timeout: s.upstreamTimeout}

	var lastErr error
	for _, upstream := range s.cfg.UpstreamServers {
		resp, _, err := client.Exchange(r.Copy(), upstream)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("all upstreams failed: %w", lastErr)
}
