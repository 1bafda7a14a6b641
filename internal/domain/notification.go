package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a notification by the domain event it reports.
type Kind string

const (
	KindOrderEvent  Kind = "order_event"
	KindReviewReply Kind = "review_reply"
	KindPromotion   Kind = "promotion"
	KindGeneric     Kind = "generic"
)

// Source distinguishes notifications materialized from backend records from
// ones synthesized client-side out of realtime domain events.
type Source string

const (
	SourceServer    Source = "server"
	SourceGenerated Source = "generated"
)

// ConnectionState is the push channel lifecycle state. Owned exclusively by
// the push Manager; transitions are its only mutator.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Notification is the unified record consumers display. Identity is ID,
// unique within a user's list.
type Notification struct {
	ID       string         `json:"id"`
	Kind     Kind           `json:"type"`
	Title    string         `json:"title,omitempty"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt tolerates unix numbers, ISO strings, and absence.
	CreatedAt EventTime `json:"created_at"`
	Source    Source    `json:"source"`
	// ServerRead mirrors the backend's is_read column for server-origin rows.
	ServerRead bool `json:"is_read"`
	// Read is the annotated view: ledger OR server-marked. Derived, never
	// persisted by this layer.
	Read bool `json:"read"`
}

// OrderMeta is the enrichment payload resolved for order notifications.
type OrderMeta struct {
	Code         string  `json:"code"`
	Total        float64 `json:"total"`
	Counterparty string  `json:"counterparty"`
}

// EventTime is a millisecond unix timestamp that unmarshals from JSON
// numbers, RFC 3339 strings, or numeric strings. Anything unparseable
// becomes zero so ordering stays total.
type EventTime int64

func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*t = 0
			return nil
		}
		if ts, err := time.Parse(time.RFC3339, str); err == nil {
			*t = EventTime(ts.UnixMilli())
			return nil
		}
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			*t = EventTime(n)
			return nil
		}
		*t = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		*t = 0
		return nil
	}
	*t = EventTime(int64(n))
	return nil
}

func (t EventTime) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// At builds an EventTime from a wall-clock time.
func At(ts time.Time) EventTime {
	return EventTime(ts.UnixMilli())
}

// SortByRecency orders newest first; equal timestamps fall back to ID
// descending (string comparison) so the order is deterministic even when
// timestamps collide or are missing.
func SortByRecency(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID > list[j].ID
	})
}
