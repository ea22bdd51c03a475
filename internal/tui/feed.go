package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/approvalctl/internal/refresh"
)

// feedMsg carries one poll result into the event loop.
type feedMsg[T any] struct {
	result refresh.Result[T]
}

// feed bridges a refresh.Poller to a bubbletea program. The poller fences
// stale fetches; accept fences again on the event loop side since sends
// may interleave.
type feed[T any] struct {
	poller  *refresh.Poller[T]
	send    func(tea.Msg)
	applied uint64
	at      time.Time
}

func newFeed[T any](name string, interval time.Duration, fetch refresh.FetchFunc[T]) *feed[T] {
	f := &feed[T]{}
	f.poller = refresh.NewPoller(refresh.Config{Interval: interval, Name: name}, fetch, func(result refresh.Result[T]) {
		if f.send != nil {
			f.send(feedMsg[T]{result: result})
		}
	})
	return f
}

func (f *feed[T]) start(ctx context.Context, send func(tea.Msg)) error {
	f.send = send
	return f.poller.Start(ctx)
}

func (f *feed[T]) stop() {
	if f.poller.IsRunning() {
		_ = f.poller.Stop()
	}
}

// refreshCmd asks for a fetch off the event loop; the poller's deliver
// path holds its lock while sending.
func (f *feed[T]) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		_ = f.poller.RefreshNow()
		return nil
	}
}

// accept reports whether result is newer than the last one applied.
func (f *feed[T]) accept(result refresh.Result[T]) bool {
	if result.Seq <= f.applied {
		return false
	}
	f.applied = result.Seq
	if result.Err == nil {
		f.at = result.FetchedAt
	}
	return true
}

func (f *feed[T]) updatedAt() time.Time {
	return f.at
}
