package messages

import "fmt"

// ─── Order builders ──────────────────────────────────────────────────────────

func OrderCreated(code string) (string, string) {
	return OrderCreatedTitle, fmt.Sprintf(OrderCreatedBody, code)
}

func OrderStatusChanged(code, status string) (string, string) {
	return OrderStatusChangedTitle, fmt.Sprintf(OrderStatusChangedBody, code, statusLabel(status))
}

func OrderCancelled(code string) (string, string) {
	return OrderCancelledTitle, fmt.Sprintf(OrderCancelledBody, code)
}

// ─── Review builders ─────────────────────────────────────────────────────────

func ReviewReply(productName string) (string, string) {
	return ReviewReplyTitle, fmt.Sprintf(ReviewReplyBody, productName)
}

// ─── Promotion builders ──────────────────────────────────────────────────────

func VoucherApproved(code string) (string, string) {
	return VoucherApprovedTitle, fmt.Sprintf(VoucherApprovedBody, code)
}

func VoucherRejected(code string) (string, string) {
	return VoucherRejectedTitle, fmt.Sprintf(VoucherRejectedBody, code)
}

// statusLabel maps backend order status codes to display text; unknown codes
// pass through unchanged.
func statusLabel(status string) string {
	if label, ok := orderStatusLabels[status]; ok {
		return label
	}
	return status
}
