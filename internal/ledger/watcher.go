package ledger

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher surfaces ledger writes made by other processes of the same user
// session (other tabs, a second agent) as change signals. The underlying
// mechanism is a filesystem watch on the state directory; consumers only see
// the affected user id.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
}

// Watch starts watching the store's directory until ctx is cancelled.
func Watch(ctx context.Context, s *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(s.Dir()); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, changes: make(chan string, 8)}
	go w.run(ctx)
	return w, nil
}

// Changes emits the user id for every observed ledger write.
func (w *Watcher) Changes() <-chan string { return w.changes }

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.changes)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			userID, ok := UserFromFilename(ev.Name)
			if !ok {
				continue
			}
			select {
			case w.changes <- userID:
			default:
				// consumer is catching up; coalescing is fine, the next
				// recompute reads the full set anyway
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("ledger: watch error")
		}
	}
}
