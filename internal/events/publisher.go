// Package events records what the signed-in user did: sessions, workflow
// edits, request decisions and denied routes. Events go to the local
// activity journal and to in-process listeners.
package events

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/approvalctl/internal/logging"
	"github.com/tOgg1/approvalctl/internal/models"
)

// Handler receives a published event on the publishing goroutine.
type Handler func(event *models.Event)

// Repository appends events to the journal.
type Repository interface {
	Append(ctx context.Context, event *models.Event) error
}

// Pruner drops the oldest journal rows beyond maxCount.
type Pruner interface {
	DeleteExcess(ctx context.Context, maxCount int) (int64, error)
}

// Filter selects events for a listener. Zero fields match everything.
type Filter struct {
	Types    []models.EventType
	Entity   models.EntityType
	EntityID string
}

// Matches reports whether event passes every set field of f.
func (f Filter) Matches(event *models.Event) bool {
	switch {
	case event == nil:
		return false
	case len(f.Types) > 0 && !slices.Contains(f.Types, event.Type):
		return false
	case f.Entity != "" && f.Entity != event.EntityType:
		return false
	case f.EntityID != "" && f.EntityID != event.EntityID:
		return false
	}
	return true
}

type listener struct {
	filter  Filter
	handler Handler
}

// Publisher journals events and fans them out to listeners.
type Publisher struct {
	mu        sync.RWMutex
	listeners map[int]listener
	nextID    int

	repo   Repository
	pruner Pruner
	keep   int
	logger zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithRepository journals every published event.
func WithRepository(repo Repository) Option {
	return func(p *Publisher) { p.repo = repo }
}

// WithRetention trims the journal to keep rows after each append. keep <= 0
// disables trimming.
func WithRetention(pruner Pruner, keep int) Option {
	return func(p *Publisher) {
		p.pruner = pruner
		p.keep = keep
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		listeners: map[int]listener{},
		logger:    logging.Component("events"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish journals event and then calls matching listeners. A journal
// failure is logged and never surfaces to the command that acted.
func (p *Publisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}
	p.journal(ctx, event)

	p.mu.RLock()
	matched := make([]Handler, 0, len(p.listeners))
	for _, l := range p.listeners {
		if l.filter.Matches(event) {
			matched = append(matched, l.handler)
		}
	}
	p.mu.RUnlock()

	for _, h := range matched {
		h(event)
	}
}

func (p *Publisher) journal(ctx context.Context, event *models.Event) {
	if p.repo == nil {
		return
	}
	if err := p.repo.Append(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("journal append failed")
		return
	}
	if p.pruner == nil || p.keep <= 0 {
		return
	}
	removed, err := p.pruner.DeleteExcess(ctx, p.keep)
	if err != nil {
		p.logger.Warn().Err(err).Msg("journal trim failed")
		return
	}
	if removed > 0 {
		p.logger.Debug().Int64("removed", removed).Int("keep", p.keep).Msg("journal trimmed")
	}
}

// Listen registers handler for events matching filter. The returned
// function removes it and is safe to call more than once.
func (p *Publisher) Listen(filter Filter, handler Handler) (stop func()) {
	if handler == nil {
		return func() {}
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener{filter: filter, handler: handler}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Listeners returns the number of registered handlers.
func (p *Publisher) Listeners() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners)
}

// Close drops every listener. Publishing afterwards still journals.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.listeners = map[int]listener{}
	p.mu.Unlock()
}

// LogListener writes each event to logger at debug level. The CLI installs
// it so --log-level debug shows the activity trail.
func LogListener(logger zerolog.Logger) Handler {
	return func(event *models.Event) {
		logger.Debug().
			Str("type", string(event.Type)).
			Str("entity", string(event.EntityType)).
			Str("id", event.EntityID).
			Msg("activity")
	}
}
