// Package postgres implements checkpointstore.Store on top of sqlx and
// lib/pq, following the repository idiom of the rest of this codebase
// (one struct wrapping *sqlx.DB, one method per operation, errors.Wrap on
// every database error).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"rtgssim/internal/checkpointstore"
	"rtgssim/internal/snapshot"
	simerrors "rtgssim/pkg/errors"
)

// Store persists checkpoints to a Postgres table. The schema is created
// lazily by EnsureSchema rather than a migration, since this is the only
// table the simulator owns.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool against url and sets the pool limits
// from maxOpen/maxIdle.
func Connect(url string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, simerrors.Wrap(err, "failed to connect to checkpoint postgres")
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return &Store{db: db}, nil
}

// EnsureSchema creates the checkpoints table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS simulation_checkpoints (
			episode_id  TEXT NOT NULL,
			tick        INTEGER NOT NULL,
			config_hash TEXT NOT NULL,
			data        JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (episode_id, tick)
		)
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return simerrors.Wrap(err, "failed to create simulation_checkpoints table")
}

type checkpointRow struct {
	EpisodeID  string    `db:"episode_id"`
	Tick       int       `db:"tick"`
	ConfigHash string    `db:"config_hash"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
}

// Save archives snap under (episodeID, tick), replacing any prior entry at
// the same key.
func (s *Store) Save(ctx context.Context, episodeID string, tick int, snap snapshot.StateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return simerrors.Wrap(err, "failed to marshal checkpoint")
	}
	const query = `
		INSERT INTO simulation_checkpoints (episode_id, tick, config_hash, data)
		VALUES (:episode_id, :tick, :config_hash, :data)
		ON CONFLICT (episode_id, tick) DO UPDATE SET
			config_hash = EXCLUDED.config_hash,
			data        = EXCLUDED.data,
			created_at  = now()
	`
	_, err = s.db.NamedExecContext(ctx, query, checkpointRow{
		EpisodeID:  episodeID,
		Tick:       tick,
		ConfigHash: snap.ConfigHash,
		Data:       data,
	})
	return simerrors.Wrap(err, "failed to save checkpoint")
}

// Load retrieves the checkpoint archived under (episodeID, tick).
func (s *Store) Load(ctx context.Context, episodeID string, tick int) (snapshot.StateSnapshot, error) {
	var row checkpointRow
	const query = `SELECT * FROM simulation_checkpoints WHERE episode_id = $1 AND tick = $2`
	if err := s.db.GetContext(ctx, &row, query, episodeID, tick); err != nil {
		if err == sql.ErrNoRows {
			return snapshot.StateSnapshot{}, simerrors.ErrUnknownTransaction
		}
		return snapshot.StateSnapshot{}, simerrors.Wrap(err, "failed to load checkpoint")
	}
	return decodeRow(row)
}

// Latest retrieves the most recent checkpoint for an episode.
func (s *Store) Latest(ctx context.Context, episodeID string) (snapshot.StateSnapshot, int, error) {
	var row checkpointRow
	const query = `
		SELECT * FROM simulation_checkpoints
		WHERE episode_id = $1
		ORDER BY tick DESC
		LIMIT 1
	`
	if err := s.db.GetContext(ctx, &row, query, episodeID); err != nil {
		if err == sql.ErrNoRows {
			return snapshot.StateSnapshot{}, 0, simerrors.ErrUnknownTransaction
		}
		return snapshot.StateSnapshot{}, 0, simerrors.Wrap(err, "failed to load latest checkpoint")
	}
	snap, err := decodeRow(row)
	return snap, row.Tick, err
}

// List returns metadata for every checkpoint archived for an episode,
// oldest first.
func (s *Store) List(ctx context.Context, episodeID string) ([]checkpointstore.Meta, error) {
	var rows []checkpointRow
	const query = `
		SELECT episode_id, tick, config_hash, created_at FROM simulation_checkpoints
		WHERE episode_id = $1
		ORDER BY tick ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query, episodeID); err != nil {
		return nil, simerrors.Wrap(err, "failed to list checkpoints")
	}
	out := make([]checkpointstore.Meta, len(rows))
	for i, r := range rows {
		out[i] = checkpointstore.Meta{
			EpisodeID:  r.EpisodeID,
			Tick:       r.Tick,
			ConfigHash: r.ConfigHash,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

func decodeRow(row checkpointRow) (snapshot.StateSnapshot, error) {
	var snap snapshot.StateSnapshot
	if err := json.Unmarshal(row.Data, &snap); err != nil {
		return snapshot.StateSnapshot{}, simerrors.Wrap(err, "failed to unmarshal checkpoint")
	}
	return snap, nil
}
