package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yieldScope/internal/model"
	"yieldScope/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pair history.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the history and state tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Append inserts one history record.
func (s *Store) Append(ctx context.Context, record model.HistoryRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pair_history (
			defi_name, pair_id, pair_name, reserve_usd, volume_usd, apr, apr_week, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		record.DefiName,
		record.PairID,
		record.PairName,
		record.ReserveUSD,
		record.VolumeUSD,
		record.APR,
		record.APRWeek,
		record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pair history: %w", err)
	}
	return nil
}

// PairWeekData returns the latest record of each UTC day in the past week, most recent first.
func (s *Store) PairWeekData(ctx context.Context, defiName, pairID string) ([]model.WeeklySample, error) {
	since := s.now().UTC().AddDate(0, 0, -storage.WeekSamples)
	rows, err := s.pool.Query(ctx, `
		SELECT reserve_usd, volume_usd, recorded_at FROM (
			SELECT DISTINCT ON ((recorded_at AT TIME ZONE 'UTC')::date)
				reserve_usd, volume_usd, recorded_at
			FROM pair_history
			WHERE defi_name = $1 AND pair_id = $2 AND recorded_at > $3
			ORDER BY (recorded_at AT TIME ZONE 'UTC')::date DESC, recorded_at DESC
		) daily
		ORDER BY recorded_at DESC
		LIMIT $4
	`, defiName, pairID, since, storage.WeekSamples)
	if err != nil {
		return nil, fmt.Errorf("query pair week data: %w", err)
	}
	defer rows.Close()

	samples := make([]model.WeeklySample, 0, storage.WeekSamples)
	for rows.Next() {
		var sample model.WeeklySample
		if err := rows.Scan(&sample.ReserveUSD, &sample.VolumeUSD, &sample.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan pair week data: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair week data: %w", err)
	}
	return samples, nil
}

// SyncState is one row of sync_state: when the scheduler last ran a cycle,
// which generation it was and how it ended.
type SyncState struct {
	LastRunTS  int64
	Generation int64
	Status     string
}

// LoadState returns the sync_state row for a name.
func (s *Store) LoadState(ctx context.Context, name string) (SyncState, bool, error) {
	if name == "" {
		return SyncState{}, false, fmt.Errorf("state name required")
	}
	var st SyncState
	row := s.pool.QueryRow(ctx, `SELECT last_run_ts, generation, status FROM sync_state WHERE name=$1`, name)
	if err := row.Scan(&st.LastRunTS, &st.Generation, &st.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SyncState{}, false, nil
		}
		return SyncState{}, false, fmt.Errorf("load sync state: %w", err)
	}
	return st, true, nil
}

// SaveState upserts the sync_state row for a name.
func (s *Store) SaveState(ctx context.Context, name string, st SyncState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_run_ts, generation, status, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET last_run_ts = EXCLUDED.last_run_ts,
			generation = EXCLUDED.generation,
			status = EXCLUDED.status,
			updated_at = now()
	`, name, st.LastRunTS, st.Generation, st.Status)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
