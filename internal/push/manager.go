package push

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/domain"
)

// Listener receives every delivered push payload. Implementations are
// invoked in registration order; a panicking listener never affects the
// others or the channel itself.
type Listener interface {
	OnPushEvent(payload []byte)
}

// Credentials exposes the current bearer credential. The session store
// implements this; tests use a literal func.
type Credentials interface {
	Token() string
}

// CredentialFunc adapts a plain func to Credentials.
type CredentialFunc func() string

func (f CredentialFunc) Token() string { return f() }

// scheduleFunc arms a one-shot timer and returns its cancel. Production
// wraps time.AfterFunc; tests substitute a manual clock.
type scheduleFunc func(d time.Duration, fn func()) (cancel func())

// Manager owns the single long-lived push channel for the logged-in user.
// Reconnection uses capped exponential backoff and retries indefinitely;
// a dead channel degrades to the polling fallback, never to a user error.
type Manager struct {
	dialer   Dialer
	creds    Credentials
	backoff  Backoff
	schedule scheduleFunc

	mu          sync.Mutex
	state       domain.ConnectionState
	userID      string
	stream      EventStream
	retries     int
	gen         uint64
	cancelRetry func()

	lmu       sync.RWMutex
	listeners []Listener
}

// NewManager builds a Manager around a dialer and a credential source.
func NewManager(dialer Dialer, creds Credentials) *Manager {
	return &Manager{
		dialer:  dialer,
		creds:   creds,
		backoff: DefaultBackoff(),
		schedule: func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		},
	}
}

// SetBackoff overrides the reconnect policy. Call before Connect.
func (m *Manager) SetBackoff(b Backoff) {
	m.backoff = b
}

// State reports the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the push channel for userID. Idempotent while connected for
// the same user. Without a credential or a user id the call is a no-op: a
// guest has no channel and that is not an error.
func (m *Manager) Connect(userID string) {
	token := m.creds.Token()
	if token == "" || userID == "" {
		log.Debug().Msg("push: no credential or user, skipping connect")
		return
	}

	m.mu.Lock()
	if m.state == domain.StateConnected && m.userID == userID {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.state = domain.StateConnecting
	m.userID = userID
	m.retries = 0
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.open(gen, userID)
}

// Disconnect cancels any pending reconnect, closes the channel if open, and
// resets to DISCONNECTED. Safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.teardownLocked()
	m.gen++
	m.mu.Unlock()
}

// teardownLocked closes the live stream and cancels a scheduled retry.
// Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
	}
	m.state = domain.StateDisconnected
	m.userID = ""
}

// open dials the channel for the given generation. A stale generation means
// Disconnect or a newer Connect won the race; the dialed stream is dropped
// so two channels never coexist.
func (m *Manager) open(gen uint64, userID string) {
	token := m.creds.Token()
	if token == "" {
		m.fail(gen, userID)
		return
	}

	stream, err := m.dialer.Dial(context.Background(), token)
	if err != nil {
		log.Debug().Err(err).Str("user", userID).Msg("push: dial failed")
		m.fail(gen, userID)
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = stream.Close()
		return
	}
	m.stream = stream
	m.state = domain.StateConnected
	m.retries = 0
	m.mu.Unlock()

	log.Info().Str("user", userID).Msg("push: channel open")
	m.read(gen, userID, stream)
}

// read pumps events until the stream dies, then routes into the retry path.
func (m *Manager) read(gen uint64, userID string, stream EventStream) {
	for {
		payload, err := stream.Next()
		if err != nil {
			m.mu.Lock()
			stale := m.gen != gen
			m.mu.Unlock()
			if stale {
				return
			}
			log.Debug().Err(err).Str("user", userID).Msg("push: channel lost")
			m.fail(gen, userID)
			return
		}
		if len(payload) == 0 {
			continue
		}
		m.dispatch(payload)
	}
}

// fail closes the channel immediately (no platform auto-retry may race the
// manager's own policy) and schedules the next attempt.
func (m *Manager) fail(gen uint64, userID string) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
	}
	m.state = domain.StateDisconnected

	delay := m.backoff.Delay(m.retries)
	m.retries++
	m.cancelRetry = m.schedule(delay, func() {
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.cancelRetry = nil
		m.state = domain.StateConnecting
		m.mu.Unlock()
		m.open(gen, userID)
	})
	m.mu.Unlock()

	log.Debug().Dur("delay", delay).Str("user", userID).Msg("push: reconnect scheduled")
}

// AddListener registers l for push delivery. Set semantics: registering the
// same listener twice is a no-op, so fan-out never duplicates.
func (m *Manager) AddListener(l Listener) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// RemoveListener unregisters l. Unknown listeners are ignored.
func (m *Manager) RemoveListener(l Listener) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// dispatch delivers one payload to every listener, isolating failures.
func (m *Manager) dispatch(payload []byte) {
	m.lmu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.lmu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Any("panic", r).Msg("push: listener panicked, event delivery continues")
				}
			}()
			l.OnPushEvent(payload)
		}()
	}
}
