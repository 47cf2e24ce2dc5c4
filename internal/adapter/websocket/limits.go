package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// LimitReason describes why a connection was refused by the limiter.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

const (
	rateEntryIdle   = 10 * time.Minute
	rateCleanupEach = 5 * time.Minute
)

type LimitsConfig struct {
	MaxConnections int64
	MaxPerIP       int
	ConnectRate    float64
	ConnectBurst   int
}

// ConnectionLimits bounds open connections per instance and per client IP,
// and the rate at which one IP may open new ones.
type ConnectionLimits struct {
	cfg   LimitsConfig
	clock clockwork.Clock

	open atomic.Int64

	mu        sync.Mutex
	perIP     map[string]int
	buckets   map[string]*bucket
	cleanupAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(cfg LimitsConfig, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		cfg:       cfg,
		clock:     clock,
		perIP:     make(map[string]int),
		buckets:   make(map[string]*bucket),
		cleanupAt: clock.Now().Add(rateCleanupEach),
	}
}

// Acquire takes a connection slot for ip. The rate check runs first and
// consumes a token even when a later check refuses the slot.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.sweep(now)
		l.cleanupAt = now.Add(rateCleanupEach)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.ConnectRate), l.cfg.ConnectBurst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	if !b.limiter.AllowN(now, 1) {
		return false, LimitReasonRate
	}

	if l.open.Load() >= l.cfg.MaxConnections {
		return false, LimitReasonGlobal
	}
	if l.perIP[ip] >= l.cfg.MaxPerIP {
		return false, LimitReasonPerIP
	}

	l.open.Add(1)
	l.perIP[ip]++
	return true, ""
}

// Release returns the slot taken for ip.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count, ok := l.perIP[ip]
	if !ok {
		return
	}
	if count <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = count - 1
	}
	l.open.Add(-1)
}

// Open returns the number of connections currently holding a slot.
func (l *ConnectionLimits) Open() int64 {
	return l.open.Load()
}

// OpenFrom returns the number of slots held by ip.
func (l *ConnectionLimits) OpenFrom(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// sweep drops idle rate buckets. Must be called with mu held.
func (l *ConnectionLimits) sweep(now time.Time) {
	cutoff := now.Add(-rateEntryIdle)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

func (l *ConnectionLimits) trackedIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

type clientIPKey struct{}

// WithClientIP stores the remote client address on the upgrade request context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the remote client address, or "" when unknown.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
