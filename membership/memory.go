package membership

import (
	"context"
	"fmt"
	"sync"

	"notifykit/core"
)

// MemoryDirectory is an in-process Directory for demos and tests. Production
// deployments implement Directory against the community collaborator's store.
type MemoryDirectory struct {
	mu          sync.RWMutex
	communities map[string]map[core.Identity]struct{}
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{communities: map[string]map[core.Identity]struct{}{}}
}

// Create registers a community with an initial member set.
func (d *MemoryDirectory) Create(communityID string, members ...core.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := make(map[core.Identity]struct{}, len(members))
	for _, m := range members {
		if normalized, err := core.NormalizeIdentity(m); err == nil {
			set[normalized] = struct{}{}
		}
	}
	d.communities[communityID] = set
}

// Join adds a member; unknown communities are created implicitly.
func (d *MemoryDirectory) Join(communityID string, member core.Identity) {
	normalized, err := core.NormalizeIdentity(member)
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.communities[communityID] == nil {
		d.communities[communityID] = map[core.Identity]struct{}{}
	}
	d.communities[communityID][normalized] = struct{}{}
}

// Leave removes a member; absent members are a no-op.
func (d *MemoryDirectory) Leave(communityID string, member core.Identity) {
	normalized, err := core.NormalizeIdentity(member)
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.communities[communityID]; ok {
		delete(set, normalized)
	}
}

// Remove deletes a community entirely.
func (d *MemoryDirectory) Remove(communityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.communities, communityID)
}

// Members implements Directory.
func (d *MemoryDirectory) Members(_ context.Context, communityID string) ([]core.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set, ok := d.communities[communityID]
	if !ok {
		return nil, fmt.Errorf("%w: community %q", core.ErrUnknownChannel, communityID)
	}
	out := make([]core.Identity, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

var _ Directory = (*MemoryDirectory)(nil)
