package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	wsadapter "notifykit/adapters/websocket"
	"notifykit/core"
	"notifykit/engine"
	"notifykit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// WSSendBuffer overrides the per-connection outbound queue for /ws sessions.
	WSSendBuffer int
	// WSWriteTimeout overrides the per-frame write timeout for /ws sessions.
	WSWriteTimeout time.Duration
}

// NewMux builds an http.Handler exposing the notification REST API and the
// WebSocket event stream. The caller's identity arrives in the X-Identity
// header, already verified by the authentication collaborator.
// Routes:
//   - GET    {prefix}/healthz
//   - WS     {prefix}/ws
//   - GET    {prefix}/notifications
//   - DELETE {prefix}/notifications
//   - GET    {prefix}/notifications/unread
//   - POST   {prefix}/notifications/read
//   - POST   {prefix}/notifications/read/channel
//   - POST   {prefix}/notify
func NewMux(svc *engine.NotifyService, registry *realtime.Registry, opts Options) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	// WebSocket events
	if registry != nil {
		var wsOpts []wsadapter.Option
		if opts.WSSendBuffer > 0 {
			wsOpts = append(wsOpts, wsadapter.WithSendBuffer(opts.WSSendBuffer))
		}
		if opts.WSWriteTimeout > 0 {
			wsOpts = append(wsOpts, wsadapter.WithWriteTimeout(opts.WSWriteTimeout))
		}
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(registry, wsOpts...))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/notifications"), func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			list, err := svc.Notifications(r.Context(), identity)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if list == nil {
				list = []core.Notification{}
			}
			writeJSON(w, list)
		case http.MethodDelete:
			deleted, err := svc.ClearAll(r.Context(), identity)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, map[string]any{"deleted": deleted})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or DELETE", nil)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/notifications/unread"), func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
			return
		}
		count, err := svc.UnreadCount(r.Context(), identity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]any{"unread": count})
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/notifications/read"), func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
			return
		}
		affected, err := svc.MarkAllRead(r.Context(), identity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]any{"affected": affected})
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/notifications/read/channel"), func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
			return
		}
		var req struct {
			Kind       string `json:"kind"`
			ChannelRef string `json:"channel_ref"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
			return
		}
		affected, err := svc.MarkChannelRead(r.Context(), identity, core.Kind(req.Kind), req.ChannelRef)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]any{"affected": affected})
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/notify"), func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
			return
		}
		var req struct {
			To         string `json:"to,omitempty"`
			ChannelRef string `json:"channel_ref,omitempty"`
			Kind       string `json:"kind,omitempty"`
			Message    string `json:"message"`
			PostRef    string `json:"post_ref,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
			return
		}

		if req.ChannelRef != "" {
			ch, err := core.ParseChannelRef(req.ChannelRef)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			entries, report, err := svc.NotifyChannel(r.Context(), identity, ch, req.Message)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, map[string]any{"recorded": len(entries), "report": report})
			return
		}

		entry, report, err := svc.Notify(r.Context(), identity, core.Identity(req.To), core.Kind(req.Kind), req.Message, req.PostRef)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]any{"entry": entry, "report": report})
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

// Helpers

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.NotifyService) {
	ctx := r.Context()

	// Verify the ledger works by counting unread for a probe identity.
	// This is a safe, lightweight check that doesn't affect real data.
	_, err := svc.UnreadCount(ctx, core.Identity("healthcheck_probe"))

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"ledger": "ok",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["ledger"] = "failed"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// callerIdentity extracts the verified identity header, replying 401 itself
// when absent.
func callerIdentity(w http.ResponseWriter, r *http.Request) (core.Identity, bool) {
	identity, err := core.NormalizeIdentity(core.Identity(r.Header.Get("X-Identity")))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return "", false
	}
	return identity, true
}

// writeServiceError maps the service error taxonomy onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownChannel):
		writeError(w, http.StatusNotFound, "unknown_channel", err.Error(), nil)
	case errors.Is(err, core.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	}
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Identity")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
