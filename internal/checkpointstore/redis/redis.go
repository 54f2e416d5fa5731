// Package redis implements checkpointstore.Store as a fast, TTL-bounded
// checkpoint cache, mirroring the go-redis/v9 client usage the teacher uses
// for rate limiting and token blacklists elsewhere in the codebase.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"rtgssim/internal/checkpointstore"
	"rtgssim/internal/snapshot"
	simerrors "rtgssim/pkg/errors"
)

// Store persists checkpoints as JSON blobs in Redis, each with a TTL.
// Unlike the Postgres store this is not meant as a durable audit trail —
// it is meant for fast resume of a recent episode.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

// New wraps an existing client with a per-key TTL (zero means no expiry).
func New(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Connect opens a client against addr.
func Connect(addr string, ttl time.Duration) *Store {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	return &Store{client: client, ttl: ttl}
}

func checkpointKey(episodeID string, tick int) string {
	return fmt.Sprintf("checkpoint:%s:%d", episodeID, tick)
}

func indexKey(episodeID string) string {
	return fmt.Sprintf("checkpoint-index:%s", episodeID)
}

// Save writes snap under (episodeID, tick) and records the tick in the
// episode's sorted index so Latest/List can find it without a SCAN.
func (s *Store) Save(ctx context.Context, episodeID string, tick int, snap snapshot.StateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return simerrors.Wrap(err, "failed to marshal checkpoint")
	}
	if err := s.client.Set(ctx, checkpointKey(episodeID, tick), data, s.ttl).Err(); err != nil {
		return simerrors.Wrap(err, "failed to write checkpoint")
	}
	if err := s.client.ZAdd(ctx, indexKey(episodeID), goredis.Z{Score: float64(tick), Member: tick}).Err(); err != nil {
		return simerrors.Wrap(err, "failed to index checkpoint")
	}
	return nil
}

// Load retrieves the checkpoint archived under (episodeID, tick).
func (s *Store) Load(ctx context.Context, episodeID string, tick int) (snapshot.StateSnapshot, error) {
	data, err := s.client.Get(ctx, checkpointKey(episodeID, tick)).Bytes()
	if err == goredis.Nil {
		return snapshot.StateSnapshot{}, simerrors.ErrUnknownTransaction
	}
	if err != nil {
		return snapshot.StateSnapshot{}, simerrors.Wrap(err, "failed to read checkpoint")
	}
	var snap snapshot.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.StateSnapshot{}, simerrors.Wrap(err, "failed to unmarshal checkpoint")
	}
	return snap, nil
}

// Latest retrieves the checkpoint with the highest recorded tick.
func (s *Store) Latest(ctx context.Context, episodeID string) (snapshot.StateSnapshot, int, error) {
	ticks, err := s.client.ZRevRange(ctx, indexKey(episodeID), 0, 0).Result()
	if err != nil {
		return snapshot.StateSnapshot{}, 0, simerrors.Wrap(err, "failed to read checkpoint index")
	}
	if len(ticks) == 0 {
		return snapshot.StateSnapshot{}, 0, simerrors.ErrUnknownTransaction
	}
	tick, err := strconv.Atoi(ticks[0])
	if err != nil {
		return snapshot.StateSnapshot{}, 0, simerrors.Wrap(err, "corrupt checkpoint index")
	}
	snap, err := s.Load(ctx, episodeID, tick)
	return snap, tick, err
}

// List returns metadata for every checkpoint still present for an
// episode, oldest first. Redis does not retain a created-at timestamp
// per entry, so CreatedAt is left zero.
func (s *Store) List(ctx context.Context, episodeID string) ([]checkpointstore.Meta, error) {
	ticks, err := s.client.ZRange(ctx, indexKey(episodeID), 0, -1).Result()
	if err != nil {
		return nil, simerrors.Wrap(err, "failed to read checkpoint index")
	}
	out := make([]checkpointstore.Meta, 0, len(ticks))
	for _, raw := range ticks {
		tick, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		out = append(out, checkpointstore.Meta{EpisodeID: episodeID, Tick: tick})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}
