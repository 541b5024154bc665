// Package permission detects and caches whether elevated execution has
// been granted. The probe is an ordinary command (`id`) run through the
// same session machinery as everything else; only the interpretation of
// its output is special.
package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rootshell/internal/domain"
)

// superuserToken marks the superuser identity in `id` output.
const superuserToken = "uid=0"

// Runner executes one command under the requested elevation mode and
// returns its collected output and exit code.
type Runner interface {
	Run(ctx context.Context, elevated bool, text string) (string, int, error)
}

// Config holds probe settings.
type Config struct {
	TTL           time.Duration // cache lifetime (default: 3m)
	ProbeInterval time.Duration // minimum spacing between probes (default: 1s)
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 3 * time.Minute
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = time.Second
	}
}

// Cache caches the outcome of the elevation probe with a TTL so callers
// can ask before every privileged operation without re-invoking the su
// front-end each time. Stale reads between probes are by design.
type Cache struct {
	runner  Runner
	ttl     time.Duration
	now     func() time.Time
	limiter *rate.Limiter
	logger  *slog.Logger
	bus     domain.EventBus

	mu        sync.Mutex
	probed    bool
	granted   bool
	checkedAt time.Time
}

// NewCache creates a permission cache probing through runner.
func NewCache(runner Runner, cfg Config, logger *slog.Logger, bus domain.EventBus) *Cache {
	cfg.applyDefaults()
	return &Cache{
		runner:  runner,
		ttl:     cfg.TTL,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(cfg.ProbeInterval), 1),
		logger:  logger,
		bus:     bus,
	}
}

// CheckElevated reports whether elevated execution is granted. The cached
// value is returned while fresh; a probe runs only when the cache is
// empty or older than the TTL. Probes are additionally rate limited so a
// misbehaving caller cannot spam the su front-end: when the limiter
// rejects, the last known value is returned as-is.
func (c *Cache) CheckElevated(ctx context.Context) bool {
	c.mu.Lock()
	if c.probed && c.now().Sub(c.checkedAt) <= c.ttl {
		granted := c.granted
		c.mu.Unlock()
		c.emit(granted, true)
		return granted
	}
	if c.probed && !c.limiter.Allow() {
		granted := c.granted
		c.mu.Unlock()
		c.logger.Debug("elevation probe rate limited, returning stale value", "granted", granted)
		return granted
	}
	c.mu.Unlock()

	granted := c.probe(ctx)

	c.mu.Lock()
	c.probed = true
	c.granted = granted
	c.checkedAt = c.now()
	c.mu.Unlock()

	c.emit(granted, false)
	return granted
}

// Invalidate drops the cached value so the next check probes again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.probed = false
	c.mu.Unlock()
}

// probe runs `id` through the elevated session and looks for the
// superuser identity token. Any execution failure means not granted.
func (c *Cache) probe(ctx context.Context) bool {
	out, _, err := c.runner.Run(ctx, true, "id")
	if err != nil {
		c.logger.Warn("elevation probe failed", "error", err, "code", domain.ErrorCodeOf(err))
		return false
	}
	granted := strings.Contains(strings.ToLower(out), superuserToken)
	c.logger.Info("elevation probed", "granted", granted)
	return granted
}

func (c *Cache) emit(granted, cached bool) {
	if c.bus == nil {
		return
	}
	data, _ := json.Marshal(domain.PermissionEvent{Granted: granted, Cached: cached})
	c.bus.Publish(context.Background(), domain.Event{
		Type:      domain.EventPermissionProbed,
		Timestamp: time.Now(),
		Payload:   data,
	})
}
