// Package backend talks to the marketplace REST API: the notification list,
// the bulk read-state mutation, and the batched order lookup used for
// enrichment. The API itself is an external collaborator; this client only
// shapes requests and tolerates its failure modes.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/domain"
)

// TokenSource yields the current bearer credential.
type TokenSource interface {
	Token() string
}

// Client is the authenticated HTTP client for the notification surface.
type Client struct {
	baseURL string
	creds   TokenSource
	http    *http.Client
}

// New builds a Client against the backend base URL.
func New(baseURL string, creds TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type listEnvelope struct {
	Data []domain.Notification `json:"data"`
}

// ListNotifications fetches the user's server-origin notifications. The
// backend scopes the list by the bearer credential, so this works even when
// no explicit user id is known client-side.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var env listEnvelope
	if err := c.get(ctx, "/notifications", &env); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	for i := range env.Data {
		env.Data[i].Source = domain.SourceServer
		if env.Data[i].Kind == "" {
			env.Data[i].Kind = domain.KindGeneric
		}
	}
	return env.Data, nil
}

// MarkAllRead flags every notification read server-side.
func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Marked int64 `json:"marked"`
	}
	if err := c.post(ctx, "/notifications/read-all", &resp); err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return resp.Marked, nil
}

type orderEnvelope struct {
	Data []orderRecord `json:"data"`
}

type orderRecord struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	Total        float64 `json:"total"`
	Counterparty string  `json:"counterparty"`
}

// OrdersByIDs resolves display metadata for the given order ids via the
// batch endpoint, degrading to one lookup per id when the batch call is
// unavailable. Ids that cannot be resolved are simply absent from the map.
func (c *Client) OrdersByIDs(ctx context.Context, ids []string) (map[string]domain.OrderMeta, error) {
	out := make(map[string]domain.OrderMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var env orderEnvelope
	err := c.get(ctx, "/orders/batch?ids="+url.QueryEscape(strings.Join(ids, ",")), &env)
	if err == nil {
		for _, rec := range env.Data {
			out[rec.ID] = domain.OrderMeta{Code: rec.Code, Total: rec.Total, Counterparty: rec.Counterparty}
		}
		if len(out) == len(ids) {
			return out, nil
		}
	} else {
		log.Debug().Err(err).Msg("backend: batch order lookup unavailable, falling back to per-id")
	}

	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		var rec orderRecord
		if err := c.get(ctx, "/orders/"+url.PathEscape(id), &rec); err != nil {
			log.Debug().Err(err).Str("order", id).Msg("backend: order lookup failed, leaving unenriched")
			continue
		}
		out[id] = domain.OrderMeta{Code: rec.Code, Total: rec.Total, Counterparty: rec.Counterparty}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, v)
}

func (c *Client) post(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodPost, path, v)
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if tok := c.creds.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

var _ domain.Backend = (*Client)(nil)
