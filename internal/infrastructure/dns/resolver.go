// Package dns resolves the broker host name without blocking the session
// loop.
//
// Each Lookup runs on its own goroutine and is bounded by the configured
// timeout. The session polls Result on later ticks and may drop a Lookup at
// any time; the goroutine finishes on its own.
//
// By default the system resolver is used. When a nameserver is configured,
// an A query (then AAAA) is sent straight to it with github.com/miekg/dns,
// bypassing /etc/resolv.conf and any local caching daemon.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	miekgdns "github.com/miekg/dns"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// DefaultTimeout bounds a single lookup. It matches the session's DNS
// timeout so an abandoned lookup never outlives the attempt by much.
const DefaultTimeout = 20 * time.Second

var (
	// ErrNoAddress is returned when the name exists but has no A or AAAA
	// record.
	ErrNoAddress = errors.New("dns: no address for host")

	// ErrServerFailure is returned when the nameserver answers with a
	// non-success response code.
	ErrServerFailure = errors.New("dns: nameserver returned an error")
)

// Config configures a Resolver.
type Config struct {
	// Nameserver is "host" or "host:port". Empty uses the system resolver.
	Nameserver string

	// Timeout bounds a lookup. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Logger is the logging interface used by the resolver.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Resolver implements session.Resolver.
type Resolver struct {
	nameserver string
	timeout    time.Duration
	client     *miekgdns.Client
	logger     Logger
}

// New creates a Resolver.
func New(cfg Config, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Resolver{timeout: timeout, logger: logger}
	if cfg.Nameserver != "" {
		ns := cfg.Nameserver
		if _, _, err := net.SplitHostPort(ns); err != nil {
			ns = net.JoinHostPort(ns, "53")
		}
		r.nameserver = ns
		r.client = &miekgdns.Client{Net: "udp", Timeout: timeout}
	}
	return r
}

// Lookup starts resolving host and returns immediately.
func (r *Resolver) Lookup(host string) session.Lookup {
	l := &lookup{}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		addr, err := r.Resolve(ctx, host)
		if err != nil {
			r.logger.Debug("dns lookup failed", "host", host, "error", err)
		}
		l.finish(addr, err)
	}()
	return l
}

// Resolve looks up host and blocks until an address is found, the lookup
// fails or ctx ends. IPv4 addresses are preferred.
func (r *Resolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}
	if r.client == nil {
		return r.resolveSystem(ctx, host)
	}
	return r.resolveNameserver(ctx, host)
}

func (r *Resolver) resolveSystem(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolving %s: %w", host, err)
	}
	return pickAddr(host, addrs)
}

func (r *Resolver) resolveNameserver(ctx context.Context, host string) (netip.Addr, error) {
	for _, qtype := range []uint16{miekgdns.TypeA, miekgdns.TypeAAAA} {
		addrs, err := r.query(ctx, host, qtype)
		if err != nil {
			return netip.Addr{}, err
		}
		if len(addrs) > 0 {
			return addrs[0], nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

func (r *Resolver) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	m := new(miekgdns.Msg)
	m.SetQuestion(miekgdns.Fqdn(host), qtype)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("querying %s for %s: %w", r.nameserver, host, err)
	}
	if in.Rcode != miekgdns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s for %s", ErrServerFailure, miekgdns.RcodeToString[in.Rcode], host)
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		switch rec := rr.(type) {
		case *miekgdns.A:
			if addr, ok := netip.AddrFromSlice(rec.A); ok {
				addrs = append(addrs, addr.Unmap())
			}
		case *miekgdns.AAAA:
			if addr, ok := netip.AddrFromSlice(rec.AAAA); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs, nil
}

func pickAddr(host string, addrs []netip.Addr) (netip.Addr, error) {
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// lookup is the result slot shared with the resolving goroutine.
type lookup struct {
	mu   sync.Mutex
	done bool
	addr netip.Addr
	err  error
}

func (l *lookup) finish(addr netip.Addr, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addr, l.err, l.done = addr, err, true
}

// Result implements session.Lookup.
func (l *lookup) Result() (netip.Addr, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr, l.done, l.err
}

var _ session.Resolver = (*Resolver)(nil)
