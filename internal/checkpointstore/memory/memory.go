// Package memory implements checkpointstore.Store as a process-local map,
// the default backend for local development and for cmd/serve runs that
// have no Postgres or Redis configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"rtgssim/internal/checkpointstore"
	"rtgssim/internal/snapshot"
	simerrors "rtgssim/pkg/errors"
)

type key struct {
	episodeID string
	tick      int
}

// Store keeps every saved checkpoint in memory for the life of the
// process. Nothing is persisted across restarts.
type Store struct {
	mu    sync.Mutex
	byKey map[key]snapshot.StateSnapshot
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{byKey: make(map[key]snapshot.StateSnapshot)}
}

func (s *Store) Save(ctx context.Context, episodeID string, tick int, snap snapshot.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key{episodeID, tick}] = snap
	return nil
}

func (s *Store) Load(ctx context.Context, episodeID string, tick int) (snapshot.StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.byKey[key{episodeID, tick}]
	if !ok {
		return snapshot.StateSnapshot{}, simerrors.ErrUnknownTransaction
	}
	return snap, nil
}

func (s *Store) Latest(ctx context.Context, episodeID string) (snapshot.StateSnapshot, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	for k := range s.byKey {
		if k.episodeID == episodeID && k.tick > best {
			best = k.tick
		}
	}
	if best == -1 {
		return snapshot.StateSnapshot{}, 0, simerrors.ErrUnknownTransaction
	}
	return s.byKey[key{episodeID, best}], best, nil
}

func (s *Store) List(ctx context.Context, episodeID string) ([]checkpointstore.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]checkpointstore.Meta, 0)
	for k, snap := range s.byKey {
		if k.episodeID != episodeID {
			continue
		}
		out = append(out, checkpointstore.Meta{
			EpisodeID:  k.episodeID,
			Tick:       k.tick,
			ConfigHash: snap.ConfigHash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}
