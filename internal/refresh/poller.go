// Package refresh keeps dashboard lists current by polling the backend.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/approvalctl/internal/logging"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// Config contains configuration for a Poller.
type Config struct {
	// Interval between scheduled fetches.
	// Default: 30s
	Interval time.Duration

	// MaxInFlight bounds concurrent fetches; a tick that finds the
	// limit reached is skipped.
	// Default: 2
	MaxInFlight int

	// Name labels log lines.
	Name string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		MaxInFlight: 2,
		Name:        "dashboard",
	}
}

// FetchFunc loads one snapshot of a list.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is one delivered fetch. Seq increases strictly across delivered
// results.
type Result[T any] struct {
	Seq       uint64
	Value     T
	Err       error
	FetchedAt time.Time
}

// Poller fetches periodically and on demand, and delivers results in
// sequence order. A fetch that completes after a newer one was delivered
// is dropped, as is anything completing after Stop.
type Poller[T any] struct {
	config  Config
	fetch   FetchFunc[T]
	deliver func(Result[T])
	logger  zerolog.Logger

	mu        sync.Mutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	sem       chan struct{}
	nextSeq   uint64
	delivered uint64
	dropped   int
}

// NewPoller creates a Poller. deliver is called from fetch goroutines,
// one call at a time, and must not call back into the Poller.
func NewPoller[T any](config Config, fetch FetchFunc[T], deliver func(Result[T])) *Poller[T] {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultConfig().MaxInFlight
	}
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}

	return &Poller[T]{
		config:  config,
		fetch:   fetch,
		deliver: deliver,
		logger:  logging.Component("refresh").With().Str("poller", config.Name).Logger(),
		sem:     make(chan struct{}, config.MaxInFlight),
	}
}

// Start fetches immediately and then on every interval.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Debug().Dur("interval", p.config.Interval).Msg("poller starting")

	p.wg.Add(1)
	go p.runLoop(p.ctx)

	return nil
}

// Stop cancels in-flight fetches and waits for them to return.
func (p *Poller[T]) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug().Msg("poller stopped")
	return nil
}

// IsRunning returns true if the poller is running.
func (p *Poller[T]) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshNow triggers a fetch outside the schedule, typically right after
// a mutation.
func (p *Poller[T]) RefreshNow() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	ctx := p.ctx
	p.mu.Unlock()

	p.trigger(ctx)
	return nil
}

// LastSeq returns the sequence number of the newest delivered result.
func (p *Poller[T]) LastSeq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// Dropped returns how many completed fetches were discarded as stale.
func (p *Poller[T]) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Poller[T]) runLoop(ctx context.Context) {
	defer p.wg.Done()

	p.trigger(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

// trigger starts one fetch. It is a no-op once Stop has begun, so the
// WaitGroup never grows while Stop is waiting on it.
func (p *Poller[T]) trigger(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	select {
	case p.sem <- struct{}{}:
	default:
		p.mu.Unlock()
		p.logger.Debug().Msg("fetch skipped, too many in flight")
		return
	}
	p.nextSeq++
	seq := p.nextSeq
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.doFetch(ctx, seq)
	}()
}

func (p *Poller[T]) doFetch(ctx context.Context, seq uint64) {
	value, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || seq <= p.delivered {
		p.dropped++
		p.logger.Debug().Uint64("seq", seq).Uint64("delivered", p.delivered).Msg("dropping stale fetch")
		return
	}
	p.delivered = seq

	if err != nil {
		p.logger.Warn().Err(err).Uint64("seq", seq).Msg("refresh failed")
	}
	if p.deliver != nil {
		p.deliver(Result[T]{Seq: seq, Value: value, Err: err, FetchedAt: time.Now()})
	}
}
