package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vn.io.arda/storefront-sync/internal/domain"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestListNotifications(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "db-2", "type": "order_event", "created_at": 200, "is_read": true},
				{"id": "db-1", "title": "Chào mừng", "created_at": "2023-11-14T22:13:20Z"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("tok"))
	list, err := c.ListNotifications(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("missing bearer credential, got %q", gotAuth)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].Source != domain.SourceServer {
		t.Fatalf("server rows must carry Source=server, got %q", list[0].Source)
	}
	if !list[0].ServerRead || list[1].ServerRead {
		t.Fatal("is_read not mapped")
	}
	if list[1].Kind != domain.KindGeneric {
		t.Fatalf("missing type should default to generic, got %q", list[1].Kind)
	}
	if list[1].CreatedAt != 1700000000000 {
		t.Fatalf("ISO timestamp not parsed, got %d", list[1].CreatedAt)
	}
}

func TestOrdersByIDs_BatchEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ids") != "o1,o2" {
			t.Errorf("unexpected ids %q", r.URL.Query().Get("ids"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "o1", "code": "DH-001", "total": 150000.0, "counterparty": "Nguyễn Văn A"},
				{"id": "o2", "code": "DH-002", "total": 99000.0, "counterparty": "Trần Thị B"},
			},
		})
	}))
	defer srv.Close()

	got, err := New(srv.URL, staticToken("tok")).OrdersByIDs(context.Background(), []string{"o1", "o2"})
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(got) != 2 || got["o1"].Code != "DH-001" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestOrdersByIDs_FallsBackPerID(t *testing.T) {
	perID := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/batch":
			w.WriteHeader(http.StatusNotFound)
		case "/orders/o1":
			perID++
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "o1", "code": "DH-001", "total": 1.0, "counterparty": "A"})
		case "/orders/o2":
			perID++
			// one id failing must not drop the others
			w.WriteHeader(http.StatusInternalServerError)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	got, err := New(srv.URL, staticToken("tok")).OrdersByIDs(context.Background(), []string{"o1", "o2"})
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if perID != 2 {
		t.Fatalf("expected 2 per-id lookups, got %d", perID)
	}
	if len(got) != 1 {
		t.Fatalf("expected the one resolvable order, got %+v", got)
	}
	if got["o1"].Code != "DH-001" {
		t.Fatalf("unexpected meta %+v", got["o1"])
	}
}

func TestMarkAllRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/notifications/read-all" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]int64{"marked": 4})
	}))
	defer srv.Close()

	n, err := New(srv.URL, staticToken("tok")).MarkAllRead(context.Background())
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}
