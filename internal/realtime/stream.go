// Package realtime consumes the bidirectional admin socket streams
// (`<ws-base>/ws/admin/<resource>/?token=...`). Consumers invalidate their
// cached lists on any message instead of patching state piecemeal; the
// derive registry additionally turns selected envelopes into client-side
// notifications.
package realtime

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/push"
)

// TokenSource yields the current bearer credential.
type TokenSource interface {
	Token() string
}

// MessageFunc receives every raw envelope for a resource.
type MessageFunc func(resource string, msg []byte)

// Stream keeps one resource's socket alive for the lifetime of its context,
// reconnecting with the same capped backoff the push channel uses.
type Stream struct {
	wsBase   string
	resource string
	creds    TokenSource
	onMsg    MessageFunc
	backoff  push.Backoff

	// sleep is swapped out by tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewStream builds a stream for one admin resource (orders, vouchers, ...).
func NewStream(wsBase, resource string, creds TokenSource, onMsg MessageFunc) *Stream {
	return &Stream{
		wsBase:   strings.TrimSuffix(wsBase, "/"),
		resource: resource,
		creds:    creds,
		onMsg:    onMsg,
		backoff:  push.DefaultBackoff(),
		sleep:    sleepCtx,
	}
}

// Run blocks until ctx is cancelled. Connection failures are never surfaced:
// a dead socket means stale admin lists until the next poll, nothing more.
func (s *Stream) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx)
		if err != nil {
			delay := s.backoff.Delay(attempt)
			attempt++
			log.Debug().Err(err).Str("resource", s.resource).Dur("delay", delay).
				Msg("realtime: dial failed, retrying")
			if !s.sleep(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		log.Info().Str("resource", s.resource).Msg("realtime: stream open")
		s.pump(ctx, conn)

		delay := s.backoff.Delay(attempt)
		attempt++
		if !s.sleep(ctx, delay) {
			return
		}
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	u := s.wsBase + "/ws/admin/" + s.resource + "/?token=" + url.QueryEscape(s.creds.Token())
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// pump reads envelopes until the socket dies or ctx ends.
func (s *Stream) pump(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Str("resource", s.resource).Msg("realtime: stream lost")
			}
			return
		}
		s.onMsg(s.resource, msg)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
