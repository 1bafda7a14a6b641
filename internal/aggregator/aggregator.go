// Package aggregator produces the unified, read-annotated notification list
// and the unread badge count. It merges server-origin records with
// client-derived ones, consults the read ledger, and keeps a short-lived
// cache plus an on-disk snapshot so consumers never see a zero-count flash
// while the first fetch is in flight.
package aggregator

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/domain"
)

const (
	defaultCacheTTL  = 2 * time.Second
	defaultEnrichTop = 3
)

// Aggregator is safe for concurrent use.
type Aggregator struct {
	backend domain.Backend
	ledger  domain.ReadLedger

	cacheTTL  time.Duration
	enrichTop int
	now       func() time.Time

	snapshotPath string

	mu        sync.Mutex
	cached    []domain.Notification
	cachedAt  time.Time
	generated []domain.Notification
}

// New builds an Aggregator. snapshotPath may be empty to disable the warm
// start cache.
func New(b domain.Backend, l domain.ReadLedger, snapshotPath string) *Aggregator {
	a := &Aggregator{
		backend:      b,
		ledger:       l,
		cacheTTL:     defaultCacheTTL,
		enrichTop:    defaultEnrichTop,
		now:          time.Now,
		snapshotPath: snapshotPath,
	}
	a.loadSnapshot()
	return a
}

// FetchUnified returns the merged server + generated list, newest first.
// force bypasses the short-lived cache; push events and the poller's
// detail-view refresh always force. Fetch failures degrade to the last known
// list so a flaky network shows stale data, never an empty badge.
func (a *Aggregator) FetchUnified(ctx context.Context, userID string, force bool) ([]domain.Notification, error) {
	a.mu.Lock()
	if !force && a.cached != nil && a.now().Sub(a.cachedAt) < a.cacheTTL {
		out := copyList(a.cached)
		a.mu.Unlock()
		return out, nil
	}
	a.mu.Unlock()

	// userID may be empty: some deployments scope the list purely by the
	// bearer credential server-side.
	server, err := a.backend.ListNotifications(ctx)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("aggregator: fetch failed, serving last known list")
		a.mu.Lock()
		out := copyList(a.cached)
		a.mu.Unlock()
		return out, err
	}

	a.mu.Lock()
	merged := mergeByID(server, a.generated)
	domain.SortByRecency(merged)
	a.mu.Unlock()

	a.enrich(ctx, merged)

	a.mu.Lock()
	a.cached = merged
	a.cachedAt = a.now()
	out := copyList(merged)
	a.mu.Unlock()

	a.saveSnapshot(merged)
	return out, nil
}

// AddGenerated records a client-synthesized notification and splices it into
// the current list so consumers see it before the next backend round-trip.
func (a *Aggregator) AddGenerated(n domain.Notification) {
	if n.ID == "" {
		return
	}
	n.Source = domain.SourceGenerated

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.generated {
		if existing.ID == n.ID {
			return
		}
	}
	a.generated = append(a.generated, n)
	a.cached = mergeByID(a.cached, []domain.Notification{n})
	domain.SortByRecency(a.cached)
}

// Invalidate drops cache freshness so the next fetch re-queries the backend.
// The cached list itself is kept for the local recompute path.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cachedAt = time.Time{}
	a.mu.Unlock()
}

// OnPushEvent makes the Aggregator a push listener: the pushed record is
// upserted immediately and the cache is invalidated so the next computation
// re-synchronizes against the backend.
func (a *Aggregator) OnPushEvent(payload []byte) {
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil || n.ID == "" {
		log.Debug().Msg("aggregator: unparseable push payload, cache invalidated only")
	} else {
		n.Source = domain.SourceServer
		a.mu.Lock()
		a.cached = mergeByID(a.cached, []domain.Notification{n})
		domain.SortByRecency(a.cached)
		a.mu.Unlock()
	}
	a.Invalidate()
}

// AnnotateRead marks each notification read when its id is in the user's
// ledger OR the backend already flagged it read. Either mechanism alone
// suppresses an item from the unread count. Idempotent.
func (a *Aggregator) AnnotateRead(list []domain.Notification, userID string) []domain.Notification {
	readIDs := a.ledger.ReadIDs(userID)
	out := copyList(list)
	for i := range out {
		_, local := readIDs[out[i].ID]
		out[i].Read = local || out[i].ServerRead
	}
	return out
}

// ComputeUnread fetches, annotates, and counts in one pass so callers that
// need both the badge and the list issue a single fetch. The returned error
// is advisory: count and list are always usable.
func (a *Aggregator) ComputeUnread(ctx context.Context, userID string, force bool) (int, []domain.Notification, error) {
	list, err := a.FetchUnified(ctx, userID, force)
	annotated := a.AnnotateRead(list, userID)
	return countUnread(annotated), annotated, err
}

// RecomputeLocal re-annotates the cached list from the ledger without any
// network call. This is the cross-tab path: another process marked items
// read and signalled via the ledger watcher.
func (a *Aggregator) RecomputeLocal(userID string) (int, []domain.Notification) {
	a.mu.Lock()
	list := copyList(a.cached)
	a.mu.Unlock()

	annotated := a.AnnotateRead(list, userID)
	return countUnread(annotated), annotated
}

// CachedIDs lists every id currently in the unified list, for bulk ledger
// writes.
func (a *Aggregator) CachedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.cached))
	for _, n := range a.cached {
		ids = append(ids, n.ID)
	}
	return ids
}

// enrich resolves missing order metadata for the most recent order
// notifications. Per-item failures leave the notification unmodified.
func (a *Aggregator) enrich(ctx context.Context, list []domain.Notification) {
	var want []string
	var targets []*domain.Notification
	for i := range list {
		if len(targets) == a.enrichTop {
			break
		}
		n := &list[i]
		if n.Kind != domain.KindOrderEvent {
			continue
		}
		orderID, _ := n.Metadata["order_id"].(string)
		if orderID == "" {
			continue
		}
		if _, enriched := n.Metadata["order_code"]; enriched {
			continue
		}
		want = append(want, orderID)
		targets = append(targets, n)
	}
	if len(want) == 0 {
		return
	}

	metas, err := a.backend.OrdersByIDs(ctx, want)
	if err != nil {
		log.Debug().Err(err).Msg("aggregator: enrichment lookup failed, keeping raw notifications")
		return
	}
	for i, n := range targets {
		meta, ok := metas[want[i]]
		if !ok {
			continue
		}
		n.Metadata["order_code"] = meta.Code
		n.Metadata["order_total"] = meta.Total
		n.Metadata["counterparty"] = meta.Counterparty
	}
}

func (a *Aggregator) loadSnapshot() {
	if a.snapshotPath == "" {
		return
	}
	data, err := os.ReadFile(a.snapshotPath)
	if err != nil {
		return
	}
	var list []domain.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		log.Debug().Err(err).Msg("aggregator: snapshot unreadable, starting cold")
		return
	}
	a.cached = list
	// cachedAt stays zero: the snapshot serves reads but the first fetch
	// still goes to the network.
}

func (a *Aggregator) saveSnapshot(list []domain.Notification) {
	if a.snapshotPath == "" {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	tmp := a.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Debug().Err(err).Msg("aggregator: snapshot write failed")
		return
	}
	_ = os.Rename(tmp, a.snapshotPath)
}

func countUnread(list []domain.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}

func copyList(list []domain.Notification) []domain.Notification {
	out := make([]domain.Notification, len(list))
	copy(out, list)
	return out
}

// mergeByID unions two lists, first occurrence winning on id collisions.
func mergeByID(a, b []domain.Notification) []domain.Notification {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]domain.Notification, 0, len(a)+len(b))
	for _, list := range [][]domain.Notification{a, b} {
		for _, n := range list {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
