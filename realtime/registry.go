package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notifykit/core"
)

// Sink is the per-connection push abstraction supplied by the transport
// adapter. Push must not block past ctx.
type Sink interface {
	Push(ctx context.Context, data []byte) error
}

// Session is a live connection handle owned by the Registry.
type Session struct {
	Identity    core.Identity
	ConnID      core.ConnectionID
	ConnectedAt time.Time
	sink        Sink
}

// Push forwards to the underlying connection sink.
func (s Session) Push(ctx context.Context, data []byte) error {
	return s.sink.Push(ctx, data)
}

// Registry maps identities to their live connections. It exclusively owns
// session lifecycle: the connect handler registers, the disconnect handler
// unregisters, the dispatcher only reads.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[core.Identity]map[core.ConnectionID]Session
	byConn  map[core.ConnectionID]core.Identity
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: map[core.Identity]map[core.ConnectionID]Session{},
		byConn: map[core.ConnectionID]core.Identity{},
	}
}

// Register adds a session. A second registration of the exact
// (identity, connID) pair fails with ErrAlreadyRegistered; additional
// connections for the same identity are the normal multi-device case.
func (r *Registry) Register(identity core.Identity, connID core.ConnectionID, sink Sink) error {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("register %s: nil sink", connID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[normalized][connID]; ok {
		return fmt.Errorf("%w: %s/%s", core.ErrAlreadyRegistered, normalized, connID)
	}
	if r.byUser[normalized] == nil {
		r.byUser[normalized] = map[core.ConnectionID]Session{}
	}
	r.byUser[normalized][connID] = Session{
		Identity:    normalized,
		ConnID:      connID,
		ConnectedAt: time.Now().UTC(),
		sink:        sink,
	}
	r.byConn[connID] = normalized
	return nil
}

// Unregister removes a session. Absent connections are a no-op: disconnect
// events may arrive after logical cleanup.
func (r *Registry) Unregister(connID core.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if conns, ok := r.byUser[identity]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, identity)
		}
	}
}

// SessionsFor returns a point-in-time snapshot of an identity's live
// sessions. Callers re-query for a fresh view; there is no invalidation.
func (r *Registry) SessionsFor(identity core.Identity) []Session {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[normalized]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Session, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

// Stats reports current connection and identity counts.
func (r *Registry) Stats() (connections int, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn), len(r.byUser)
}
