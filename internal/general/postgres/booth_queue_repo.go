package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/ports"
)

// BoothQueueRepo persists booth queue documents: one row per (booth, day),
// entries serialized as jsonb. The row lock taken by GetForUpdate is the
// per-booth exclusive section that serializes all queue mutations.
type BoothQueueRepo struct{}

// NewBoothQueueRepo constructs a new BoothQueueRepo.
func NewBoothQueueRepo() ports.BoothQueueRepository {
	return &BoothQueueRepo{}
}

// GetForUpdate loads the queue document under FOR UPDATE, creating the
// day's document lazily on the first driver join. Concurrent writers on
// the same booth block here until the holding transaction commits.
func (repo *BoothQueueRepo) GetForUpdate(ctx context.Context, boothID, date string) (*queue.BoothQueue, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	// lazy create keeps the "created on first join of the day" lifecycle
	_, err = tx.Exec(ctx, `
		INSERT INTO booth_queues (booth_id, queue_date, entries, version)
		VALUES ($1, $2, '[]'::jsonb, 0)
		ON CONFLICT (booth_id, queue_date) DO NOTHING
	`, boothID, date)
	if err != nil {
		return nil, fmt.Errorf("ensure booth queue row: %w", err)
	}

	var raw []byte
	q := &queue.BoothQueue{BoothID: boothID, Date: date}
	err = tx.QueryRow(ctx, `
		SELECT entries, version
		FROM booth_queues
		WHERE booth_id = $1 AND queue_date = $2
		FOR UPDATE
	`, boothID, date).Scan(&raw, &q.Version)
	if err != nil {
		return nil, fmt.Errorf("lock booth queue %s/%s: %w", boothID, date, err)
	}

	if err := json.Unmarshal(raw, &q.Entries); err != nil {
		return nil, fmt.Errorf("decode booth queue entries: %w", err)
	}
	return q, nil
}

// Get loads the queue document without locking; missing documents come
// back as an empty queue (the day's document simply does not exist yet).
func (repo *BoothQueueRepo) Get(ctx context.Context, boothID, date string) (*queue.BoothQueue, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var raw []byte
	q := &queue.BoothQueue{BoothID: boothID, Date: date}
	err = tx.QueryRow(ctx, `
		SELECT entries, version
		FROM booth_queues
		WHERE booth_id = $1 AND queue_date = $2
	`, boothID, date).Scan(&raw, &q.Version)
	if err != nil {
		if isNoRows(err) {
			return q, nil
		}
		return nil, fmt.Errorf("get booth queue %s/%s: %w", boothID, date, err)
	}

	if err := json.Unmarshal(raw, &q.Entries); err != nil {
		return nil, fmt.Errorf("decode booth queue entries: %w", err)
	}
	return q, nil
}

// Save writes the document back and bumps its version. Must run in the
// same transaction that locked the row.
func (repo *BoothQueueRepo) Save(ctx context.Context, q *queue.BoothQueue) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(q.Entries)
	if err != nil {
		return fmt.Errorf("encode booth queue entries: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE booth_queues
		SET entries = $1, version = version + 1, updated_at = now()
		WHERE booth_id = $2 AND queue_date = $3
	`, raw, q.BoothID, q.Date)
	if err != nil {
		return fmt.Errorf("save booth queue %s/%s: %w", q.BoothID, q.Date, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("save booth queue %s/%s: row disappeared", q.BoothID, q.Date)
	}
	q.Version++
	return nil
}

// ListBoothIDs returns every booth with a queue document for the day,
// feeding the scheduled repair pass.
func (repo *BoothQueueRepo) ListBoothIDs(ctx context.Context, date string) ([]string, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT booth_id FROM booth_queues WHERE queue_date = $1 ORDER BY booth_id`, date)
	if err != nil {
		return nil, fmt.Errorf("list booths for %s: %w", date, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booth id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
