package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/distill/internal/models"
)

type JobStoreConfig struct {
	ConnString string
	TableName  string
}

// JobStore persists job progress in Postgres. Writes are best-effort from the
// pipeline's point of view: callers log and ignore the returned error.
type JobStore struct {
	config JobStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config JobStoreConfig) (*JobStore, error) {
	if config.TableName == "" {
		config.TableName = "jobs"
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	js := &JobStore{
		config: config,
		pool:   pool,
	}

	if err := js.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return js, nil
}

func (js *JobStore) initialize() error {
	ctx := context.Background()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			job_id TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			stats JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, js.config.TableName)

	_, err := js.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	return nil
}

func (js *JobStore) UpdateStatus(ctx context.Context, update models.JobUpdate) error {
	var stats []byte
	if update.Stats != nil {
		encoded, err := json.Marshal(update.Stats)
		if err != nil {
			return fmt.Errorf("failed to encode stats: %v", err)
		}
		stats = encoded
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (job_id, stage, progress, message, stats, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (job_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			stats = COALESCE(EXCLUDED.stats, %s.stats),
			updated_at = now()`,
		js.config.TableName, js.config.TableName)

	_, err := js.pool.Exec(ctx, stmt,
		update.JobID,
		update.Stage,
		update.Progress,
		update.Message,
		stats,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %v", err)
	}

	return nil
}

func (js *JobStore) Close() {
	if js.pool != nil {
		js.pool.Close()
	}
}
