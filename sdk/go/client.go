package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"notifykit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the NotifyKit HTTP + WebSocket API.
// Calls act on behalf of the identity set with WithIdentity.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithIdentity sets the X-Identity header for all requests (HTTP + WS).
func WithIdentity(identity core.Identity) Option {
	return func(c *Client) {
		if strings.TrimSpace(string(identity)) != "" {
			c.headers.Set("X-Identity", string(identity))
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Notify sends a direct-target notification from the client's identity.
func (c *Client) Notify(ctx context.Context, to core.Identity, kind core.Kind, message, postRef string) (NotifyResult, error) {
	if strings.TrimSpace(string(to)) == "" {
		return NotifyResult{}, ErrEmptyIdentity
	}
	body := map[string]any{"to": to, "kind": kind, "message": message}
	if postRef != "" {
		body["post_ref"] = postRef
	}
	var out NotifyResult
	if err := c.postJSON(ctx, "/notify", body, &out); err != nil {
		return NotifyResult{}, err
	}
	return out, nil
}

// NotifyChannel fans a message out to a channel's members.
func (c *Client) NotifyChannel(ctx context.Context, channelRef, message string) (ChannelNotifyResult, error) {
	if strings.TrimSpace(channelRef) == "" {
		return ChannelNotifyResult{}, errors.New("channelRef is required")
	}
	var out ChannelNotifyResult
	err := c.postJSON(ctx, "/notify", map[string]any{"channel_ref": channelRef, "message": message}, &out)
	if err != nil {
		return ChannelNotifyResult{}, err
	}
	return out, nil
}

// Notifications lists the caller's entries, newest first.
func (c *Client) Notifications(ctx context.Context) ([]core.Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications", nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list []core.Notification
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// UnreadCount returns the caller's unread badge count.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications/unread", nil)
	if err != nil {
		return 0, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body struct {
		Unread int64 `json:"unread"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return 0, err
	}
	return body.Unread, nil
}

// MarkAllRead flips every unread entry for the caller; returns the count flipped.
func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var body struct {
		Affected int64 `json:"affected"`
	}
	if err := c.postJSON(ctx, "/notifications/read", nil, &body); err != nil {
		return 0, err
	}
	return body.Affected, nil
}

// MarkChannelRead flips unread entries of one kind within one channel.
func (c *Client) MarkChannelRead(ctx context.Context, kind core.Kind, channelRef string) (int64, error) {
	var body struct {
		Affected int64 `json:"affected"`
	}
	err := c.postJSON(ctx, "/notifications/read/channel", map[string]any{"kind": kind, "channel_ref": channelRef}, &body)
	if err != nil {
		return 0, err
	}
	return body.Affected, nil
}

// ClearAll deletes every entry for the caller; returns the count deleted.
func (c *Client) ClearAll(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/notifications", nil)
	if err != nil {
		return 0, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body struct {
		Deleted int64 `json:"deleted"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}

// Health probes /healthz and returns status + ledger check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, target any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
