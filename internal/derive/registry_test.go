package derive

import (
	"encoding/json"
	"testing"

	"vn.io.arda/storefront-sync/internal/domain"
)

func makeEnvelope(action string, data any) []byte {
	raw, _ := json.Marshal(data)
	b, _ := json.Marshal(map[string]any{"action": action, "data": json.RawMessage(raw)})
	return b
}

func TestRegisterAndDispatch(t *testing.T) {
	called := false
	Register("test-resource", "CREATE", func(data []byte) *domain.Notification {
		called = true
		return &domain.Notification{ID: "gen-x", Title: "test"}
	})

	result := Dispatch("test-resource", makeEnvelope("CREATE", map[string]string{}))
	if !called {
		t.Fatal("handler was not called")
	}
	if result == nil || result.Title != "test" {
		t.Fatal("unexpected result")
	}
}

func TestDispatch_PastTenseActionsCollapse(t *testing.T) {
	got := 0
	Register("tense-resource", "UPDATE", func(data []byte) *domain.Notification {
		got++
		return nil
	})

	Dispatch("tense-resource", makeEnvelope("UPDATE", map[string]string{}))
	Dispatch("tense-resource", makeEnvelope("UPDATED", map[string]string{}))
	if got != 2 {
		t.Fatalf("UPDATED must route to the UPDATE handler, handler ran %d times", got)
	}
}

func TestDispatch_UnknownActionReturnsNil(t *testing.T) {
	if result := Dispatch("orders", makeEnvelope("REFRESH", map[string]string{})); result != nil {
		t.Fatal("expected nil for unregistered action")
	}
}

func TestDispatch_InvalidJSONReturnsNil(t *testing.T) {
	if result := Dispatch("orders", []byte("not json")); result != nil {
		t.Fatal("expected nil for invalid JSON")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register("dupe-resource", "CREATE", func([]byte) *domain.Notification { return nil })
	Register("dupe-resource", "CREATE", func([]byte) *domain.Notification { return nil })
}

func TestOrderHandlers(t *testing.T) {
	n := Dispatch("orders", makeEnvelope("CREATED", map[string]string{"id": "o1", "code": "DH-001", "status": "PENDING"}))
	if n == nil {
		t.Fatal("order CREATE should derive a notification")
	}
	if n.Kind != domain.KindOrderEvent || n.Source != domain.SourceGenerated {
		t.Fatalf("unexpected kind/source: %s/%s", n.Kind, n.Source)
	}
	if n.Metadata["order_id"] != "o1" {
		t.Fatalf("order id not carried, got %v", n.Metadata["order_id"])
	}
	if n.ID == "" || n.ID == "gen-" {
		t.Fatalf("derived notification needs a unique id, got %q", n.ID)
	}

	// payload without an id is skipped
	if got := Dispatch("orders", makeEnvelope("CREATE", map[string]string{"code": "DH-002"})); got != nil {
		t.Fatal("order without id must be skipped")
	}
}

func TestVoucherHandler_IntermediateStatesSkipped(t *testing.T) {
	if n := Dispatch("vouchers", makeEnvelope("UPDATE", map[string]string{"id": "v1", "status": "PENDING"})); n != nil {
		t.Fatal("intermediate moderation states must not derive notifications")
	}
	n := Dispatch("vouchers", makeEnvelope("UPDATE", map[string]string{"id": "v1", "code": "SALE10", "status": "APPROVED"}))
	if n == nil || n.Kind != domain.KindPromotion {
		t.Fatal("approved voucher should derive a promotion notification")
	}
}
