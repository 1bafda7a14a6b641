package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vn.io.arda/storefront-sync/internal/aggregator"
	"vn.io.arda/storefront-sync/internal/backend"
	"vn.io.arda/storefront-sync/internal/domain"
	"vn.io.arda/storefront-sync/internal/ledger"
	"vn.io.arda/storefront-sync/internal/poller"
	"vn.io.arda/storefront-sync/internal/session"
)

type staticState domain.ConnectionState

func (s staticState) State() domain.ConnectionState { return domain.ConnectionState(s) }

// fixture stands up the whole local API over a fake marketplace backend.
type fixture struct {
	api      *httptest.Server
	upstream *httptest.Server
	store    *ledger.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notifications":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "db-1", "type": "generic", "created_at": 100},
					{"id": "db-2", "type": "generic", "created_at": 200},
				},
			})
		case "/notifications/read-all":
			_ = json.NewEncoder(w).Encode(map[string]int{"marked": 2})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	sess := session.NewStore("")
	client := backend.New(upstream.URL, sess)
	store, err := ledger.NewStore(t.TempDir())
	require.NoError(t, err)

	agg := aggregator.New(client, store, "")
	p := poller.New(agg, sess, time.Hour, nil)
	hub := NewHub()

	h := NewHandler(agg, store, client, sess, p, hub, staticState(domain.StateConnected))
	api := httptest.NewServer(NewRouter(h))
	t.Cleanup(api.Close)

	return &fixture{api: api, upstream: upstream, store: store}
}

func (f *fixture) getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(f.api.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.api.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestListNotifications(t *testing.T) {
	f := newFixture(t)

	var got struct {
		Data   []domain.Notification `json:"data"`
		Unread int                   `json:"unread"`
	}
	f.getJSON(t, "/notifications", &got)

	require.Len(t, got.Data, 2)
	require.Equal(t, 2, got.Unread)
	require.Equal(t, "db-2", got.Data[0].ID, "newest first")
}

func TestMarkAllRead_ClearsBadge(t *testing.T) {
	f := newFixture(t)

	// populate the unified list first
	var list struct {
		Unread int `json:"unread"`
	}
	f.getJSON(t, "/notifications", &list)
	require.Equal(t, 2, list.Unread)

	resp := f.post(t, "/notifications/read-all", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count struct {
		Count int `json:"count"`
	}
	f.getJSON(t, "/notifications/unread-count", &count)
	require.Equal(t, 0, count.Count)
}

func TestMarkRead_SingleID(t *testing.T) {
	f := newFixture(t)

	var list struct {
		Unread int `json:"unread"`
	}
	f.getJSON(t, "/notifications", &list)

	resp := f.post(t, "/notifications/db-2/read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var count struct {
		Count int `json:"count"`
	}
	f.getJSON(t, "/notifications/unread-count", &count)
	require.Equal(t, 1, count.Count)

	require.Contains(t, f.store.ReadIDs(""), "db-2")
}

func TestSetView(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/view", `{"detail_open": true, "focused": true}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	var got map[string]any
	f.getJSON(t, "/health", &got)
	require.Equal(t, "ok", got["status"])
	require.Equal(t, "CONNECTED", got["push"])
}

func TestHub_BroadcastReachesStream(t *testing.T) {
	hub := NewHub()
	send := make(chan []byte, 4)
	c := hub.Register(send)
	defer hub.Unregister(c)

	hub.OnPushEvent([]byte(`{"id":"db-9"}`))
	hub.BroadcastBadge(7)

	msg := <-send
	require.Equal(t, "event: notification\ndata: {\"id\":\"db-9\"}\n\n", string(msg))

	badge := <-send
	require.Contains(t, string(badge), "event: badge")
	require.Contains(t, string(badge), `{"count":7}`)
}
