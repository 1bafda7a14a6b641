package push

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// EventStream is one live push channel. Next blocks until the server sends
// a payload worth forwarding; Close tears the channel down and unblocks Next.
type EventStream interface {
	Next() ([]byte, error)
	Close() error
}

// Dialer opens a push channel authenticated with the given credential.
type Dialer interface {
	Dial(ctx context.Context, token string) (EventStream, error)
}

// SSEDialer opens `GET <base>/sse/?token=<credential>` and frames the
// text/event-stream response. Heartbeats never reach the caller.
type SSEDialer struct {
	BaseURL string
	Client  *http.Client
}

// NewSSEDialer builds a dialer against the backend base URL. The HTTP client
// deliberately has no overall timeout: the stream is long-lived.
func NewSSEDialer(baseURL string) *SSEDialer {
	return &SSEDialer{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 0},
	}
}

func (d *SSEDialer) Dial(ctx context.Context, token string) (EventStream, error) {
	u := d.BaseURL + "/sse/?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse: unexpected status %d", resp.StatusCode)
	}

	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// sseStream parses event-stream framing: "event:"/"data:" lines, a blank
// line terminates each event. Liveness frames (empty data, "ping", and the
// initial "connected" handshake) are swallowed here.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *sseStream) Next() ([]byte, error) {
	var event string
	var data strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		switch {
		case line == "":
			payload := data.String()
			if isHeartbeat(event, payload) {
				event = ""
				data.Reset()
				continue
			}
			return []byte(payload), nil

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))

		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, ":"):
			// comment line, used by some proxies as keep-alive
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func isHeartbeat(event, payload string) bool {
	if payload == "" || payload == "ping" {
		return true
	}
	switch event {
	case "ping", "heartbeat", "connected":
		return true
	}
	return false
}

var (
	_ Dialer      = (*SSEDialer)(nil)
	_ EventStream = (*sseStream)(nil)
)
