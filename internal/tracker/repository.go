package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines query record persistence operations.
type Repository interface {
	// Create persists a new record, assigning ID and CreatedAt when unset.
	Create(ctx context.Context, rec *QueryRecord) error
	// ListByUser returns one caller's records, newest first, plus the total
	// count for pagination.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]QueryRecord, int64, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new query record repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *QueryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	memoryIDs := make([]string, len(rec.RelatedMemoryIDs))
	for i, id := range rec.RelatedMemoryIDs {
		memoryIDs[i] = id.String()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO query_records
		   (id, user_id, query_text, location_filter, community_response, model_response, related_memory_ids, status, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, rec.QueryText, rec.LocationFilter,
		rec.CommunityResponse, rec.ModelResponse, memoryIDs,
		string(rec.Status), rec.Source, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]QueryRecord, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM query_records WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting query records: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, query_text, location_filter, community_response, model_response, related_memory_ids, status, source, created_at
		   FROM query_records
		  WHERE user_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing query records: %w", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var memoryIDs []string
		var status string
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.QueryText, &rec.LocationFilter,
			&rec.CommunityResponse, &rec.ModelResponse, &memoryIDs,
			&status, &rec.Source, &rec.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning query record: %w", err)
		}
		rec.Status = Status(status)
		for _, raw := range memoryIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			rec.RelatedMemoryIDs = append(rec.RelatedMemoryIDs, id)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating query records: %w", err)
	}
	return records, total, nil
}
