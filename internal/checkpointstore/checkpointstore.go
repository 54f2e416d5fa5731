// Package checkpointstore defines the pluggable persistence interface for
// episode checkpoints. It is an audit/resume trail around the snapshot
// format already defined by internal/snapshot — stores in this package
// never invent their own wire format, they only marshal and archive the
// StateSnapshot the engine already produces.
package checkpointstore

import (
	"context"
	"time"

	"rtgssim/internal/snapshot"
)

// Store archives and retrieves StateSnapshots keyed by an episode id and
// the tick at which the snapshot was taken.
type Store interface {
	Save(ctx context.Context, episodeID string, tick int, snap snapshot.StateSnapshot) error
	Load(ctx context.Context, episodeID string, tick int) (snapshot.StateSnapshot, error)
	Latest(ctx context.Context, episodeID string) (snapshot.StateSnapshot, int, error)
	List(ctx context.Context, episodeID string) ([]Meta, error)
}

// Meta describes one archived checkpoint without its full payload.
type Meta struct {
	EpisodeID  string
	Tick       int
	ConfigHash string
	CreatedAt  time.Time
}
