// Package derive synthesizes client-side notifications out of realtime
// domain events. Each resource handler registers itself via init(), so
// adding a new derived notification kind never touches the stream consumer.
package derive

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/domain"
)

// Handler maps a realtime event payload to a derived notification.
// Returning nil means "skip this event" (nothing worth surfacing).
type Handler func(data []byte) *domain.Notification

var handlers = map[string]Handler{}

// Register binds a handler to a {resource}:{action} key. Call from init().
// Panics on duplicate registration to catch wiring mistakes early.
func Register(resource, action string, h Handler) {
	key := resource + ":" + action
	if _, exists := handlers[key]; exists {
		panic("derive: duplicate handler registered for key: " + key)
	}
	handlers[key] = h
}

// envelope is the admin stream message shape: the action verb plus the
// resource payload, forwarded verbatim.
type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Dispatch routes one stream message for the given resource. The backend
// emits both imperative and past-tense verbs (CREATE/CREATED); they are
// collapsed before lookup. Returns nil when no handler matches or the
// message cannot be parsed.
func Dispatch(resource string, msg []byte) *domain.Notification {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Warn().Str("resource", resource).Err(err).Msg("derive: failed to parse envelope")
		return nil
	}

	key := resource + ":" + normalizeAction(env.Action)
	h, ok := handlers[key]
	if !ok {
		log.Debug().Str("key", key).Msg("derive: no handler registered")
		return nil
	}
	return h(env.Data)
}

func normalizeAction(action string) string {
	switch action {
	case "CREATED":
		return "CREATE"
	case "UPDATED":
		return "UPDATE"
	case "DELETED":
		return "DELETE"
	}
	return action
}
