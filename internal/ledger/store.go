// Package ledger is the single source of truth for "has this user seen this
// notification id". State lives in one JSON file per user under a state
// directory shared by every process on the device; the Watcher turns file
// writes into cross-process change signals.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	filePrefix = "notif_read_"
	fileSuffix = ".json"
	// guestBucket holds read state accumulated before login.
	guestBucket = "guest"
)

// Store persists per-user read sets. Read state is monotonic: ids are never
// removed, so concurrent additions from different processes commute.
type Store struct {
	dir string

	mu   sync.Mutex
	subs []chan string
}

// NewStore creates the state directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir exposes the state directory for the Watcher and the snapshot cache.
func (s *Store) Dir() string { return s.dir }

// ReadIDs returns the user's current read set, re-read from disk on every
// call so writes from sibling processes are always visible. Storage failures
// degrade to an empty set: items show as unread rather than crashing.
func (s *Store) ReadIDs(userID string) map[string]struct{} {
	ids := make(map[string]struct{})

	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("user", userID).Msg("ledger: read failed, treating as empty")
		}
		return ids
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("ledger: corrupt read set, treating as empty")
		return ids
	}
	for _, id := range list {
		ids[id] = struct{}{}
	}
	return ids
}

// MarkRead adds a single id to the user's read set.
func (s *Store) MarkRead(userID, id string) error {
	return s.MarkAllRead(userID, []string{id})
}

// MarkAllRead unions ids into the persisted set, then broadcasts the change
// so other consumers and tabs converge without a network round-trip.
func (s *Store) MarkAllRead(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	current := s.ReadIDs(userID)
	before := len(current)
	for _, id := range ids {
		current[id] = struct{}{}
	}
	if len(current) == before {
		s.mu.Unlock()
		return nil
	}

	merged := make([]string, 0, len(current))
	for id := range current {
		merged = append(merged, id)
	}

	err := s.writeFile(userID, merged)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(userID)
	return nil
}

// Subscribe returns a channel receiving the user id for every same-process
// change. Cross-process changes arrive via the Watcher instead.
func (s *Store) Subscribe() <-chan string {
	ch := make(chan string, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) publish(userID string) {
	if userID == "" {
		userID = guestBucket
	}
	s.mu.Lock()
	subs := make([]chan string, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- userID:
		default:
			// slow subscriber, signal is best-effort
		}
	}
}

// writeFile persists atomically: a torn write must never corrupt the set.
func (s *Store) writeFile(userID string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	target := s.path(userID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, filePrefix+sanitize(userID)+fileSuffix)
}

// sanitize keeps user ids filesystem-safe; empty means guest.
func sanitize(userID string) string {
	if userID == "" {
		return guestBucket
	}
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return r.Replace(userID)
}

// UserFromFilename maps a ledger file name back to its user id; ok is false
// for files outside the ledger's namespace (snapshots, tmp files).
func UserFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix), true
}
