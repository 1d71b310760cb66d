package ratelimit

import (
	"fmt"
	"math"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
)

// Role is the caller's access level, taken from the authenticated
// session or "anonymous".
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleOperator  Role = "operator"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

var roleMultiplier = map[Role]float64{
	RoleAdmin:    10,
	RoleOperator: 5,
	RoleUser:     2,
}

// Request carries everything the limiter inspects about one arrival.
type Request struct {
	Role      Role
	IP        string
	UserID    string
	Path      string
	UserAgent string
	Country   string
	Trusted   bool
	At        time.Time
}

// Decision is the admission outcome for one arrival.
type Decision struct {
	Allowed      bool
	Skip         bool
	Limit        int
	Remaining    int
	WindowMS     int64
	RetryAfter   time.Duration
	AnomalyScore int
}

// Config tunes the limiter. Zero values fall back to defaults.
type Config struct {
	BaseMax  int
	WindowMS int64

	TrustedCIDRs  []string
	InternalCIDRs []string

	// Country codes adding geographic risk to the anomaly score.
	HighRiskCountries   []string
	MediumRiskCountries []string

	// LoadFn returns current system load scaled to 0..100. Nil uses
	// the 1-minute load average over CPU count.
	LoadFn func() float64

	// OnSuspicious fires when an arrival's anomaly score crosses the
	// reporting threshold. Enforcement stays with the alert pipeline.
	OnSuspicious func(req Request, score int)
}

const (
	defaultBaseMax  = 100
	defaultWindowMS = 15 * 60 * 1000
	hardFloor       = 10
	anomalyLimit    = 70
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is an adaptive token-bucket admission controller keyed by
// role:ip[:user_id].
type Limiter struct {
	cfg Config

	trusted  []*net.IPNet
	internal []*net.IPNet

	mu       sync.Mutex
	buckets  map[string]*bucket
	arrivals map[string][]time.Time
}

// New builds a limiter. Malformed CIDRs are skipped with a warning.
func New(cfg Config) *Limiter {
	if cfg.BaseMax <= 0 {
		cfg.BaseMax = defaultBaseMax
	}
	if cfg.WindowMS <= 0 {
		cfg.WindowMS = defaultWindowMS
	}
	if cfg.LoadFn == nil {
		cfg.LoadFn = systemLoad
	}
	return &Limiter{
		cfg:      cfg,
		trusted:  parseCIDRs(cfg.TrustedCIDRs),
		internal: parseCIDRs(cfg.InternalCIDRs),
		buckets:  make(map[string]*bucket),
		arrivals: make(map[string][]time.Time),
	}
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	var out []*net.IPNet
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			log.Logger.Warn().Str("cidr", c).Msg("Skipping malformed CIDR in rate limit config")
			continue
		}
		out = append(out, ipnet)
	}
	return out
}

// Check admits or rejects one arrival.
func (l *Limiter) Check(req Request) Decision {
	if req.At.IsZero() {
		req.At = time.Now()
	}

	if l.exempt(req) {
		return Decision{Allowed: true, Skip: true, WindowMS: l.cfg.WindowMS}
	}

	limit := l.effectiveMax(req)
	key := identityKey(req)
	window := time.Duration(l.cfg.WindowMS) * time.Millisecond

	l.mu.Lock()
	score := l.anomalyScoreLocked(req)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(limit), lastRefill: req.At}
		l.buckets[key] = b
	} else {
		// Proportional refill since the last check, against the
		// currently effective limit.
		elapsed := req.At.Sub(b.lastRefill)
		if elapsed > 0 {
			b.tokens += float64(limit) * float64(elapsed) / float64(window)
			b.lastRefill = req.At
		}
	}
	if b.tokens > float64(limit) {
		b.tokens = float64(limit)
	}

	d := Decision{
		Limit:        limit,
		WindowMS:     l.cfg.WindowMS,
		AnomalyScore: score,
	}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
		d.Remaining = int(b.tokens)
	} else {
		d.RetryAfter = time.Duration((1 - b.tokens) / float64(limit) * float64(window))
		if d.RetryAfter <= 0 {
			d.RetryAfter = time.Second
		}
		metrics.RateLimitRejections.Inc()
	}
	l.mu.Unlock()

	if score > anomalyLimit && l.cfg.OnSuspicious != nil {
		l.cfg.OnSuspicious(req, score)
	}
	return d
}

// exempt implements the whitelist bypass: trusted CIDRs, the health
// endpoint, and the system role calling from an internal address.
func (l *Limiter) exempt(req Request) bool {
	if req.Path == "/health" {
		return true
	}
	ip := net.ParseIP(req.IP)
	if ip == nil {
		return false
	}
	if contains(l.trusted, ip) {
		return true
	}
	if req.Role == RoleSystem && contains(l.internal, ip) {
		return true
	}
	return false
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// effectiveMax computes the adaptive per-window budget.
func (l *Limiter) effectiveMax(req Request) int {
	max := float64(l.cfg.BaseMax)

	if mult, ok := roleMultiplier[req.Role]; ok {
		max *= mult
	}

	hour := req.At.Hour()
	switch {
	case hour >= 9 && hour < 18:
		max *= 1.5
	case hour >= 22 || hour < 6:
		max *= 0.5
	}

	load := l.cfg.LoadFn()
	switch {
	case load > 80:
		max *= 0.5
	case load < 30:
		max *= 1.2
	}

	if req.Trusted || contains(l.trusted, net.ParseIP(req.IP)) {
		max *= 2
	}

	if max < hardFloor {
		max = hardFloor
	}
	return int(math.Floor(max))
}

func identityKey(req Request) string {
	if req.UserID != "" {
		return fmt.Sprintf("%s:%s:%s", req.Role, req.IP, req.UserID)
	}
	return fmt.Sprintf("%s:%s", req.Role, req.IP)
}

// systemLoad scales the 1-minute load average by CPU count to 0..100.
// On platforms without /proc/loadavg it reports a neutral 50.
func systemLoad() float64 {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 50
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 50
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 50
	}
	pct := load1 / float64(runtime.NumCPU()) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
