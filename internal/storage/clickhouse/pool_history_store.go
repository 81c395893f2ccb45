package clickhouse

import (
	"context"
	"fmt"
	"time"

	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
	"npc-stake/internal/storage"
)

// PoolHistoryStore implements storage.PoolHistoryStore using ClickHouse.
type PoolHistoryStore struct {
	conn *Conn
}

// NewPoolHistoryStore creates a new PoolHistoryStore.
func NewPoolHistoryStore(conn *Conn) *PoolHistoryStore {
	return &PoolHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolHistoryStore = (*PoolHistoryStore)(nil)

const poolHistoryColumns = `pool, timestamp_ms, slot, acc_scaled, reward_rate_per_sec, total_staked, apy_percent, theoretical`

// Insert adds a new point. Returns ErrDuplicateKey if (pool, timestamp_ms) exists.
// MergeTree does not enforce uniqueness, so the key is checked first.
func (s *PoolHistoryStore) Insert(ctx context.Context, p *domain.PoolHistoryPoint) (err error) {
	if p == nil || p.Pool == "" {
		return storage.ErrInvalidInput
	}
	defer record("insert_pool_snapshot", time.Now(), &err)

	exists, err := s.exists(ctx, p.Pool, p.TimestampMs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO pool_snapshots (`+poolHistoryColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var theoretical uint8
	if p.Theoretical {
		theoretical = 1
	}
	err = batch.Append(
		p.Pool, p.TimestampMs, p.Slot, p.AccScaled,
		p.RewardRatePerSec, p.TotalStaked, p.APYPercent, theoretical,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves points for a pool within [from, to] (inclusive), ordered by timestamp ASC.
func (s *PoolHistoryStore) GetRange(ctx context.Context, pool string, from, to int64) (_ []*domain.PoolHistoryPoint, err error) {
	defer record("get_pool_snapshots", time.Now(), &err)
	query := `
		SELECT ` + poolHistoryColumns + `
		FROM pool_snapshots FINAL
		WHERE pool = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, from, to)
	if err != nil {
		return nil, fmt.Errorf("query pool history range: %w", err)
	}
	defer rows.Close()

	return scanPoolHistory(rows)
}

// Latest retrieves the most recent point for a pool. Returns ErrNotFound if none exist.
func (s *PoolHistoryStore) Latest(ctx context.Context, pool string) (_ *domain.PoolHistoryPoint, err error) {
	defer record("latest_pool_snapshot", time.Now(), &err)
	query := `
		SELECT ` + poolHistoryColumns + `
		FROM pool_snapshots FINAL
		WHERE pool = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("query latest pool history: %w", err)
	}
	defer rows.Close()

	points, err := scanPoolHistory(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

func (s *PoolHistoryStore) exists(ctx context.Context, pool string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM pool_snapshots
		WHERE pool = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, pool, timestampMs).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func record(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *err)
}

func scanPoolHistory(rows chRows) ([]*domain.PoolHistoryPoint, error) {
	var points []*domain.PoolHistoryPoint

	for rows.Next() {
		var p domain.PoolHistoryPoint
		var theoretical uint8

		err := rows.Scan(
			&p.Pool, &p.TimestampMs, &p.Slot, &p.AccScaled,
			&p.RewardRatePerSec, &p.TotalStaked, &p.APYPercent, &theoretical,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool history row: %w", err)
		}

		p.Theoretical = theoretical != 0
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool history rows: %w", err)
	}

	return points, nil
}
