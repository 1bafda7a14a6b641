// Package poller bounds notification staleness when push delivery is
// interrupted: a fixed-interval tick recomputes the unread count (and the
// full list while a detail view is open), a wake signal mirrors the
// window-focus refresh, and ledger change signals trigger a purely local
// recompute so sibling tabs converge without network traffic.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/domain"
)

// DefaultInterval matches the production polling fallback.
const DefaultInterval = 5 * time.Second

// Source computes unread state; implemented by the aggregator.
type Source interface {
	ComputeUnread(ctx context.Context, userID string, force bool) (int, []domain.Notification, error)
	RecomputeLocal(userID string) (int, []domain.Notification)
}

// UserSource reports the current user id; implemented by the session store.
type UserSource interface {
	UserID() string
}

// UpdateFunc observes every recompute result (badge re-broadcast).
type UpdateFunc func(count int, list []domain.Notification)

// Poller drives the polling fallback loop. Construct with New, then Run.
type Poller struct {
	source   Source
	users    UserSource
	interval time.Duration
	onUpdate UpdateFunc

	detailOpen  atomic.Bool
	unread      atomic.Int64
	wake        chan struct{}
	readChanged chan string
}

// New builds a Poller; onUpdate may be nil.
func New(source Source, users UserSource, interval time.Duration, onUpdate UpdateFunc) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:      source,
		users:       users,
		interval:    interval,
		onUpdate:    onUpdate,
		wake:        make(chan struct{}, 1),
		readChanged: make(chan string, 8),
	}
}

// SetDetailOpen toggles the forced full-list refresh on each tick while a
// consumer has the full notification view open.
func (p *Poller) SetDetailOpen(open bool) {
	p.detailOpen.Store(open)
}

// Wake requests a lightweight refresh outside the tick, the window-focus
// analogue. Coalesces when a refresh is already pending.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// OnPushEvent satisfies the push listener contract: a delivered event means
// the server has fresher state, so a refresh is scheduled outside the tick.
func (p *Poller) OnPushEvent([]byte) {
	p.Wake()
}

// NotifyReadChanged feeds a ledger change signal for the given user.
func (p *Poller) NotifyReadChanged(userID string) {
	select {
	case p.readChanged <- userID:
	default:
		// the next recompute reads the full ledger anyway
	}
}

// Forward pipes an external signal channel (ledger subscription, watcher)
// into the poller until ctx ends or the channel closes.
func (p *Poller) Forward(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case user, ok := <-ch:
			if !ok {
				return
			}
			p.NotifyReadChanged(user)
		}
	}
}

// Unread returns the last computed badge count.
func (p *Poller) Unread() int {
	return int(p.unread.Load())
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// prime the badge before the first tick
	p.refresh(ctx, p.detailOpen.Load())

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			p.refresh(ctx, p.detailOpen.Load())

		case <-p.wake:
			p.refresh(ctx, false)

		case user := <-p.readChanged:
			if user != currentBucket(p.users.UserID()) {
				continue
			}
			count, list := p.source.RecomputeLocal(p.users.UserID())
			p.publish(count, list)
		}
	}
}

func (p *Poller) refresh(ctx context.Context, force bool) {
	userID := p.users.UserID()
	count, list, err := p.source.ComputeUnread(ctx, userID, force)
	if err != nil {
		// stale values were returned; the next tick self-heals
		log.Debug().Err(err).Msg("poller: refresh degraded")
	}
	p.publish(count, list)
}

func (p *Poller) publish(count int, list []domain.Notification) {
	p.unread.Store(int64(count))
	if p.onUpdate != nil {
		p.onUpdate(count, list)
	}
}

// currentBucket maps the session's user id onto the ledger's key namespace.
func currentBucket(userID string) string {
	if userID == "" {
		return "guest"
	}
	return userID
}
