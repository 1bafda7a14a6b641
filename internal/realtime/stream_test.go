package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func wsURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "http", "ws", 1)
}

func TestStream_DeliversEnvelopesAndAuthenticates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotPath, gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"UPDATED","data":{"id":"o1"}}`))
		// keep the socket open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var mu sync.Mutex
	var received [][]byte
	stream := NewStream(wsURL(srv), "orders", staticToken("tok"), func(resource string, msg []byte) {
		if resource != "orders" {
			t.Errorf("unexpected resource %q", resource)
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no envelope received")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if gotPath != "/ws/admin/orders/" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotToken != "tok" {
		t.Fatalf("credential not passed, got %q", gotToken)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestStream_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"CREATE","data":{}}`))
		if n == 1 {
			conn.Close() // first connection dies immediately
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewStream(wsURL(srv), "vouchers", staticToken("tok"), func(string, []byte) {})
	stream.sleep = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := conns
		mu.Unlock()
		if n >= 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected a reconnect, saw %d connection(s)", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
