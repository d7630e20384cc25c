// Package ratelimit implements a process-local sliding-window limiter keyed by client.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultMaxClients    = 10000
	defaultSweepInterval = time.Minute
)

// Config tunes the limiter.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	MaxClients    int
	SweepInterval time.Duration
}

// window is the ordered list of admitted-or-rejected hit times of one client.
// It is guarded by Limiter.mu.
type window struct {
	hits []time.Time
}

// Limiter admits at most MaxRequests hits per client inside any Window.
type Limiter struct {
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	rejected prometheus.Counter

	// mu covers the client table and every window in it, so a hit can never
	// land in a window that Sweep has already dropped.
	mu      sync.Mutex
	clients *lru.Cache[string, *window]

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithRejectionCounter counts rejected requests.
func WithRejectionCounter(c prometheus.Counter) Option {
	return func(l *Limiter) { l.rejected = c }
}

// New constructs a limiter.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.MaxRequests <= 0 {
		return nil, errors.New("ratelimit: max requests must be positive")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	clients, err := lru.New[string, *window](cfg.MaxClients)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
		clients: clients,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

// Allow records a hit for key and reports whether it is within the limit.
// Rejected hits are recorded too, so a client that keeps hammering stays limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	w, ok := l.clients.Get(key)
	if !ok {
		w = &window{}
		l.clients.Add(key, w)
	}
	// read the clock under the lock so hits stay ordered oldest first
	now := l.now()
	w.hits = append(w.hits, now)
	w.hits = prune(w.hits, now, l.cfg.Window)
	count := len(w.hits)
	l.mu.Unlock()

	if count > l.cfg.MaxRequests {
		if l.rejected != nil {
			l.rejected.Inc()
		}
		return false
	}
	return true
}

// prune drops hits older than the window. hits is ordered oldest first.
func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) > window {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	return l.clients.Len()
}

// Sweep forgets clients whose newest hit has left the window.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for _, key := range l.clients.Keys() {
		w, ok := l.clients.Peek(key)
		if !ok {
			continue
		}
		if len(w.hits) == 0 || now.Sub(w.hits[len(w.hits)-1]) > l.cfg.Window {
			l.clients.Remove(key)
			removed++
		}
	}
	return removed
}

// Start launches the background sweeper. It stops when ctx is done or Close is called.
func (l *Limiter) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

func (l *Limiter) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limiter swept idle clients", slog.Int("removed", n))
			}
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	started := true
	l.startOnce.Do(func() { started = false })
	if started {
		<-l.done
	}
}
