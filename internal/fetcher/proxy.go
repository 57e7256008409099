package fetcher

import (
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"github.com/IshaanNene/eventscope/internal/config"
)

// DefaultProxyCooldown is how long a failing proxy sits out when the
// configuration does not say.
const DefaultProxyCooldown = time.Minute

// ProxyPool hands out proxies for outbound source requests. A proxy that
// fails is benched for a cooldown and then rejoins the rotation, so a long
// running server or scheduler recovers without a restart.
type ProxyPool struct {
	mu       sync.Mutex
	proxies  []*url.URL
	benched  map[string]time.Time
	random   bool
	cursor   int
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewProxyPool parses cfg.URLs, skipping entries without a host.
func NewProxyPool(cfg config.ProxyConfig, logger *slog.Logger) *ProxyPool {
	p := &ProxyPool{
		benched:  make(map[string]time.Time),
		random:   cfg.Rotation == "random",
		cooldown: cfg.Cooldown,
		now:      time.Now,
		logger:   logger.With("component", "proxy_pool"),
	}
	if p.cooldown <= 0 {
		p.cooldown = DefaultProxyCooldown
	}
	for _, raw := range cfg.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			p.logger.Warn("skipping proxy", "url", raw, "error", err)
			continue
		}
		p.proxies = append(p.proxies, u)
	}
	p.logger.Info("proxy pool ready", "proxies", len(p.proxies), "rotation", cfg.Rotation)
	return p
}

// Next returns the next usable proxy, or nil when every proxy is benched.
func (p *ProxyPool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	usable := p.usable()
	if len(usable) == 0 {
		return nil
	}
	if p.random {
		return usable[rand.IntN(len(usable))]
	}
	u := usable[p.cursor%len(usable)]
	p.cursor++
	return u
}

// Bench takes u out of rotation for the cooldown.
func (p *ProxyPool) Bench(u *url.URL, err error) {
	p.mu.Lock()
	p.benched[u.Host] = p.now().Add(p.cooldown)
	p.mu.Unlock()
	p.logger.Warn("proxy benched", "proxy", u.Host, "cooldown", p.cooldown, "error", err)
}

// Restore puts u back into rotation immediately.
func (p *ProxyPool) Restore(u *url.URL) {
	p.mu.Lock()
	delete(p.benched, u.Host)
	p.mu.Unlock()
}

// Len is the number of configured proxies.
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Available is the number of proxies currently in rotation.
func (p *ProxyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.usable())
}

// usable lists proxies not benched, releasing expired benches. Callers hold mu.
func (p *ProxyPool) usable() []*url.URL {
	now := p.now()
	out := make([]*url.URL, 0, len(p.proxies))
	for _, u := range p.proxies {
		if until, ok := p.benched[u.Host]; ok {
			if now.Before(until) {
				continue
			}
			delete(p.benched, u.Host)
		}
		out = append(out, u)
	}
	return out
}
