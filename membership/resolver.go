// Package membership resolves a channel into the identities eligible to
// receive events on it. Community membership is owned by the community
// collaborator and re-resolved on every call; nothing here caches it, so a
// join or leave is visible to the very next dispatch.
package membership

import (
	"context"
	"fmt"

	"notifykit/core"
)

// Directory is the community collaborator's lookup surface.
type Directory interface {
	Members(ctx context.Context, communityID string) ([]core.Identity, error)
}

// Resolver answers MembersOf for both channel kinds. Direct pairs resolve
// locally to their two participants; community channels delegate to the
// Directory.
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// MembersOf returns the member set of a channel. Unknown communities are a
// hard failure: the dispatcher must not attempt a partial fan-out.
func (r *Resolver) MembersOf(ctx context.Context, ch core.Channel) ([]core.Identity, error) {
	switch ch.Kind {
	case core.ChannelDirect:
		return []core.Identity{ch.A, ch.B}, nil
	case core.ChannelCommunity:
		if r.directory == nil {
			return nil, fmt.Errorf("%w: no community directory configured", core.ErrUnknownChannel)
		}
		members, err := r.directory.Members(ctx, ch.Community)
		if err != nil {
			return nil, err
		}
		return members, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownChannel, ch.Ref())
}
