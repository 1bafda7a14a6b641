package messages

// ─── Orders ──────────────────────────────────────────────────────────────────

const (
	OrderCreatedTitle = "Bạn có đơn hàng mới"
	OrderCreatedBody  = "Đơn hàng '%s' vừa được tạo."

	OrderStatusChangedTitle = "Trạng thái đơn hàng thay đổi"
	OrderStatusChangedBody  = "Đơn hàng '%s' đã chuyển sang trạng thái %s."

	OrderCancelledTitle = "Đơn hàng đã bị hủy"
	OrderCancelledBody  = "Đơn hàng '%s' đã bị hủy."
)

var orderStatusLabels = map[string]string{
	"PENDING":   "chờ xác nhận",
	"CONFIRMED": "đã xác nhận",
	"SHIPPING":  "đang giao",
	"DELIVERED": "đã giao",
	"CANCELLED": "đã hủy",
	"RETURNED":  "đã hoàn trả",
}

// ─── Reviews ─────────────────────────────────────────────────────────────────

const (
	ReviewReplyTitle = "Người bán đã trả lời đánh giá"
	ReviewReplyBody  = "Đánh giá của bạn về '%s' vừa nhận được phản hồi."
)

// ─── Promotions ──────────────────────────────────────────────────────────────

const (
	VoucherApprovedTitle = "Voucher đã được phê duyệt"
	VoucherApprovedBody  = "Voucher '%s' của bạn đã được quản trị viên phê duyệt."

	VoucherRejectedTitle = "Voucher bị từ chối"
	VoucherRejectedBody  = "Voucher '%s' của bạn đã bị từ chối."
)
