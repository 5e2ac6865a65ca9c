package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	mem "notifykit/adapters/memory"
	ws "notifykit/adapters/websocket"
	"notifykit/core"
	"notifykit/engine"
	"notifykit/membership"
	"notifykit/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()

	store := mem.New()
	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry)
	bus := engine.NewEventBus(engine.DispatchAsync)

	// Seed one community so channel fan-out has members to hit.
	dir := membership.NewMemoryDirectory()
	dir.Create("demo", "alice", "bob", "carol")

	svc := engine.NewNotifyService(store, dispatcher, membership.NewResolver(dir), bus)
	defer svc.Close()

	http.Handle("/ws", ws.Handler(registry))
	http.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		// POST /notify?from=alice&to=bob&kind=like&post=p1&message=...
		// POST /notify?from=alice&channel=community:demo&message=...
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		from := core.Identity(q.Get("from"))
		message := q.Get("message")

		if channelRef := q.Get("channel"); channelRef != "" {
			ch, err := core.ParseChannelRef(channelRef)
			if err != nil {
				http.Error(w, err.Error(), 404)
				return
			}
			entries, report, err := svc.NotifyChannel(ctx, from, ch, message)
			writeJSON(w, map[string]any{"recorded": len(entries), "report": report, "err": errString(err)})
			return
		}

		kind := core.Kind(q.Get("kind"))
		entry, report, err := svc.Notify(ctx, from, core.Identity(q.Get("to")), kind, message, q.Get("post"))
		writeJSON(w, map[string]any{"entry": entry, "report": report, "err": errString(err)})
	})
	http.HandleFunc("/inbox", func(w http.ResponseWriter, r *http.Request) {
		// GET /inbox?identity=bob, POST /inbox?identity=bob marks all read
		identity := core.Identity(r.URL.Query().Get("identity"))
		switch r.Method {
		case http.MethodGet:
			list, err := svc.Notifications(ctx, identity)
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			unread, _ := svc.UnreadCount(ctx, identity)
			writeJSON(w, map[string]any{"unread": unread, "entries": list})
		case http.MethodPost:
			affected, err := svc.MarkAllRead(ctx, identity)
			writeJSON(w, map[string]any{"affected": affected, "err": errString(err)})
		default:
			http.NotFound(w, r)
		}
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
