// Package security owns API key validation, per-key sliding-window rate
// limiting and IP abuse tracking. All state is in-memory and resets on
// restart.
package security

import (
	"sync"
	"time"

	"videoextract/internal/model"
	"videoextract/pkg/logger"

	"go.uber.org/zap"
)

const (
	windowSize       = 60 * time.Second
	suspicionHorizon = time.Hour
)

// KeyRecord is the runtime state of one configured API key.
type KeyRecord struct {
	Key               string
	Name              string
	Permissions       map[string]bool
	RequestsPerMinute int
	CreatedAt         time.Time
	LastUsed          time.Time
	UsageCount        int64
}

// AuthContext annotates an admitted request with quota metadata.
type AuthContext struct {
	KeyName   string
	ClientIP  string
	Limit     int
	Remaining int
	Reset     time.Time

	permissions map[string]bool
}

// HasPermission reports whether the authenticated key carries perm.
func (a *AuthContext) HasPermission(perm string) bool {
	return a.permissions[perm]
}

// Gate authenticates requests and enforces quotas. One instance is shared
// by all request handlers; every map behind it is mutex-guarded.
type Gate struct {
	cfg *model.SecurityConfig

	mu         sync.Mutex
	keys       map[string]*KeyRecord
	windows    map[string][]time.Time
	blocked    map[string]time.Time // ip -> time of block
	suspicious map[string][]time.Time

	now func() time.Time
}

// NewGate builds a Gate from the configured key list.
func NewGate(cfg *model.SecurityConfig) *Gate {
	g := &Gate{
		cfg:        cfg,
		keys:       make(map[string]*KeyRecord),
		windows:    make(map[string][]time.Time),
		blocked:    make(map[string]time.Time),
		suspicious: make(map[string][]time.Time),
		now:        time.Now,
	}
	for _, kc := range cfg.Keys {
		perms := make(map[string]bool, len(kc.Permissions))
		for _, p := range kc.Permissions {
			perms[p] = true
		}
		limit := kc.RequestsPerMinute
		if limit <= 0 {
			limit = cfg.RequestsPerMinute
		}
		g.keys[kc.Key] = &KeyRecord{
			Key:               kc.Key,
			Name:              kc.Name,
			Permissions:       perms,
			RequestsPerMinute: limit,
			CreatedAt:         g.now(),
		}
	}
	return g
}

// Authenticate validates the supplied credential against the key store,
// the blocked-IP set and the key's sliding-window quota, in that order.
// Every rejection other than a bare missing credential counts as a
// suspicious event for the source address.
func (g *Gate) Authenticate(apiKey, ip string) (*AuthContext, *model.Error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if apiKey == "" {
		return nil, model.NewError(model.ErrUnauthenticated, "API key required")
	}

	record, ok := g.keys[apiKey]
	if !ok {
		g.recordSuspiciousLocked(ip, "invalid API key")
		return nil, model.NewError(model.ErrInvalidKey, "invalid API key")
	}

	if g.isBlockedLocked(ip) {
		g.recordSuspiciousLocked(ip, "blocked IP access attempt")
		return nil, model.NewError(model.ErrForbidden, "access denied: IP address is blocked")
	}

	now := g.now()
	window := g.evictLocked(apiKey, now)
	if len(window) >= record.RequestsPerMinute {
		g.recordSuspiciousLocked(ip, "rate limit exceeded")
		retryAfter := window[0].Add(windowSize).Sub(now)
		err := model.NewError(model.ErrRateLimited, "rate limit exceeded")
		err.RetryAfter = int64(retryAfter.Seconds()) + 1
		return nil, err
	}

	window = append(window, now)
	g.windows[apiKey] = window

	record.LastUsed = now
	record.UsageCount++

	return &AuthContext{
		KeyName:     record.Name,
		ClientIP:    ip,
		Limit:       record.RequestsPerMinute,
		Remaining:   record.RequestsPerMinute - len(window),
		Reset:       window[0].Add(windowSize),
		permissions: record.Permissions,
	}, nil
}

// CheckPermission verifies the admitted key may perform perm. Failures are
// suspicious events for the source address.
func (g *Gate) CheckPermission(auth *AuthContext, perm string) *model.Error {
	if auth.HasPermission(perm) {
		return nil
	}
	g.mu.Lock()
	g.recordSuspiciousLocked(auth.ClientIP, "insufficient permissions: "+perm)
	g.mu.Unlock()
	return model.NewError(model.ErrForbidden, "insufficient permissions: "+perm+" required")
}

// IsBlocked reports whether ip currently has a live block.
func (g *Gate) IsBlocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBlockedLocked(ip)
}

// evictLocked drops window entries older than windowSize and returns the
// live slice. Amortized O(1) per check.
func (g *Gate) evictLocked(identifier string, now time.Time) []time.Time {
	window := g.windows[identifier]
	cutoff := now.Add(-windowSize)
	for len(window) > 0 && window[0].Before(cutoff) {
		window = window[1:]
	}
	g.windows[identifier] = window
	return window
}

// isBlockedLocked also expires stale blocks, resolving the block-permanence
// question in favor of automatic expiry after BlockDuration.
func (g *Gate) isBlockedLocked(ip string) bool {
	blockedAt, ok := g.blocked[ip]
	if !ok {
		return false
	}
	if g.now().Sub(blockedAt) > g.cfg.BlockDuration {
		delete(g.blocked, ip)
		logger.Logger.Info("IP block expired", zap.String("ip", ip))
		return false
	}
	return true
}

func (g *Gate) recordSuspiciousLocked(ip, activity string) {
	if ip == "" {
		return
	}
	now := g.now()
	events := g.suspicious[ip]
	cutoff := now.Add(-suspicionHorizon)
	for len(events) > 0 && events[0].Before(cutoff) {
		events = events[1:]
	}
	events = append(events, now)
	g.suspicious[ip] = events

	logger.Logger.Warn("Suspicious activity",
		zap.String("ip", ip),
		zap.String("activity", activity),
		zap.Int("recent_events", len(events)))

	if len(events) >= g.cfg.MaxFailedAttempts {
		if _, already := g.blocked[ip]; !already {
			g.blocked[ip] = now
			logger.Logger.Warn("IP blocked",
				zap.String("ip", ip),
				zap.Int("events", len(events)))
		}
	}
}

// KeyName returns the configured name for a key, for logging.
func (g *Gate) KeyName(apiKey string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if record, ok := g.keys[apiKey]; ok {
		return record.Name
	}
	return ""
}
