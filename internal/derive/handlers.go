package derive

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vn.io.arda/storefront-sync/internal/domain"
	"vn.io.arda/storefront-sync/internal/messages"
)

func init() {
	Register("orders", "CREATE", handleOrderCreated)
	Register("orders", "UPDATE", handleOrderUpdated)
	Register("reviews", "UPDATE", handleReviewReplied)
	Register("vouchers", "UPDATE", handleVoucherModerated)
}

func newID() string {
	return "gen-" + uuid.NewString()
}

type orderPayload struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

func handleOrderCreated(data []byte) *domain.Notification {
	var p orderPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		return nil
	}
	title, body := messages.OrderCreated(p.Code)
	return &domain.Notification{
		ID:        newID(),
		Kind:      domain.KindOrderEvent,
		Title:     title,
		Message:   body,
		Metadata:  map[string]any{"order_id": p.ID, "status": p.Status},
		CreatedAt: domain.At(time.Now()),
		Source:    domain.SourceGenerated,
	}
}

func handleOrderUpdated(data []byte) *domain.Notification {
	var p orderPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" || p.Status == "" {
		return nil
	}
	var title, body string
	if p.Status == "CANCELLED" {
		title, body = messages.OrderCancelled(p.Code)
	} else {
		title, body = messages.OrderStatusChanged(p.Code, p.Status)
	}
	return &domain.Notification{
		ID:        newID(),
		Kind:      domain.KindOrderEvent,
		Title:     title,
		Message:   body,
		Metadata:  map[string]any{"order_id": p.ID, "status": p.Status},
		CreatedAt: domain.At(time.Now()),
		Source:    domain.SourceGenerated,
	}
}

type reviewPayload struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Reply       string `json:"reply"`
}

func handleReviewReplied(data []byte) *domain.Notification {
	var p reviewPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" || p.Reply == "" {
		return nil
	}
	title, body := messages.ReviewReply(p.ProductName)
	return &domain.Notification{
		ID:        newID(),
		Kind:      domain.KindReviewReply,
		Title:     title,
		Message:   body,
		Metadata:  map[string]any{"review_id": p.ID},
		CreatedAt: domain.At(time.Now()),
		Source:    domain.SourceGenerated,
	}
}

type voucherPayload struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

func handleVoucherModerated(data []byte) *domain.Notification {
	var p voucherPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		return nil
	}
	var title, body string
	switch p.Status {
	case "APPROVED":
		title, body = messages.VoucherApproved(p.Code)
	case "REJECTED":
		title, body = messages.VoucherRejected(p.Code)
	default:
		// intermediate moderation states are not worth a notification
		return nil
	}
	return &domain.Notification{
		ID:        newID(),
		Kind:      domain.KindPromotion,
		Title:     title,
		Message:   body,
		Metadata:  map[string]any{"voucher_id": p.ID, "status": p.Status},
		CreatedAt: domain.At(time.Now()),
		Source:    domain.SourceGenerated,
	}
}
