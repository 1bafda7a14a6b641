package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/aggregator"
	"vn.io.arda/storefront-sync/internal/domain"
	"vn.io.arda/storefront-sync/internal/ledger"
	"vn.io.arda/storefront-sync/internal/poller"
	"vn.io.arda/storefront-sync/internal/session"
)

// StateSource reports push channel health for /health.
type StateSource interface {
	State() domain.ConnectionState
}

// Handler exposes the aggregated notification state to local UI consumers.
// This is the consumer adapter contract: the badge polls the count, the
// dropdown and the full page read the list, and every surface may hang on
// the SSE stream instead of polling.
type Handler struct {
	agg     *aggregator.Aggregator
	ledger  *ledger.Store
	backend domain.Backend
	session *session.Store
	poller  *poller.Poller
	hub     *Hub
	state   StateSource
}

// NewHandler wires the handler to the core services.
func NewHandler(agg *aggregator.Aggregator, store *ledger.Store, b domain.Backend, sess *session.Store, p *poller.Poller, hub *Hub, state StateSource) *Handler {
	return &Handler{agg: agg, ledger: store, backend: b, session: sess, poller: p, hub: hub, state: state}
}

// ListNotifications GET /notifications?force=true
func (h *Handler) ListNotifications(c echo.Context) error {
	force := c.QueryParam("force") == "true"
	count, list, err := h.agg.ComputeUnread(c.Request().Context(), h.session.UserID(), force)
	if err != nil {
		// stale data was returned; the consumer still renders it
		log.Debug().Err(err).Msg("list served degraded")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":   list,
		"unread": count,
	})
}

// GetUnreadCount GET /notifications/unread-count
func (h *Handler) GetUnreadCount(c echo.Context) error {
	count, _, err := h.agg.ComputeUnread(c.Request().Context(), h.session.UserID(), false)
	if err != nil {
		log.Debug().Err(err).Msg("unread count served degraded")
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

// MarkRead POST /notifications/:id/read — the implicit read-on-view action.
func (h *Handler) MarkRead(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notification id required")
	}
	if err := h.ledger.MarkRead(h.session.UserID(), id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("ledger write failed")
		return echo.ErrInternalServerError
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all
// The ledger is authoritative locally; the backend mutation is best-effort
// so generated notifications (which the server never saw) still clear.
func (h *Handler) MarkAllRead(c echo.Context) error {
	userID := h.session.UserID()
	ids := h.agg.CachedIDs()

	if err := h.ledger.MarkAllRead(userID, ids); err != nil {
		log.Warn().Err(err).Msg("ledger write failed")
		return echo.ErrInternalServerError
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := h.backend.MarkAllRead(ctx); err != nil {
			log.Debug().Err(err).Msg("server-side mark-all-read failed, local ledger still applies")
		}
	}()

	return c.JSON(http.StatusOK, map[string]int{"marked": len(ids)})
}

// SetView POST /view — consumers report detail-view visibility and focus.
func (h *Handler) SetView(c echo.Context) error {
	var body struct {
		DetailOpen *bool `json:"detail_open"`
		Focused    bool  `json:"focused"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.DetailOpen != nil {
		h.poller.SetDetailOpen(*body.DetailOpen)
	}
	if body.Focused {
		h.poller.Wake()
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream GET /notifications/stream — SSE re-broadcast for local consumers.
func (h *Handler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendCh := make(chan []byte, 32)
	consumer := h.hub.Register(sendCh)
	defer h.hub.Unregister(consumer)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case msg, ok := <-sendCh:
			if !ok {
				return nil
			}
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			return nil
		}
	}
}

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"push":      h.state.State().String(),
		"unread":    h.poller.Unread(),
		"consumers": h.hub.ConnectedCount(),
	})
}
