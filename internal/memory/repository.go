package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/openrelief/newstracker/internal/content"
)

// Repository defines memory record persistence operations.
type Repository interface {
	// Upsert inserts or overwrites the record keyed on (SourceKind, SourceID).
	Upsert(ctx context.Context, rec *Record) error
	// Exists reports whether a record already covers the given source item.
	Exists(ctx context.Context, kind content.Kind, sourceID string) (bool, error)
	// Watermark returns the maximum OriginalCreatedAt among records of the
	// given kind, or the zero time when none exist.
	Watermark(ctx context.Context, kind content.Kind) (time.Time, error)
	// Candidates returns records eligible for retrieval, optionally narrowed
	// by a case-insensitive location substring, in stable storage order.
	Candidates(ctx context.Context, locationFilter string) ([]Record, error)
	// CountByKind returns the number of records for a kind.
	CountByKind(ctx context.Context, kind content.Kind) (int64, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new memory record repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.LastUpdated = time.Now()

	var vec any
	if rec.Embedded() {
		v := pgvector.NewVector(rec.Embedding)
		vec = &v
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO memory_records
		   (id, source_kind, source_id, processed_content, raw_content, location, original_created_at, embedding, last_updated)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		 ON CONFLICT (source_kind, source_id) DO UPDATE SET
		   processed_content = EXCLUDED.processed_content,
		   raw_content = EXCLUDED.raw_content,
		   location = EXCLUDED.location,
		   original_created_at = EXCLUDED.original_created_at,
		   embedding = EXCLUDED.embedding,
		   last_updated = EXCLUDED.last_updated`,
		rec.ID, rec.SourceKind, rec.SourceID, rec.ProcessedContent, rec.RawContent,
		rec.Location, rec.OriginalCreatedAt, vec, rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upserting memory record %s/%s: %w", rec.SourceKind, rec.SourceID, err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, kind content.Kind, sourceID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM memory_records WHERE source_kind = $1 AND source_id = $2)`,
		kind, sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking memory record %s/%s: %w", kind, sourceID, err)
	}
	return exists, nil
}

func (r *PostgresRepository) Watermark(ctx context.Context, kind content.Kind) (time.Time, error) {
	var wm *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(original_created_at) FROM memory_records WHERE source_kind = $1`,
		kind,
	).Scan(&wm)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s watermark: %w", kind, err)
	}
	if wm == nil {
		return time.Time{}, nil
	}
	return *wm, nil
}

func (r *PostgresRepository) Candidates(ctx context.Context, locationFilter string) ([]Record, error) {
	query := `SELECT id, source_kind, source_id, processed_content, COALESCE(location, ''), original_created_at, embedding, last_updated
	          FROM memory_records`
	args := []any{}
	if locationFilter != "" {
		query += ` WHERE location ILIKE '%' || $1 || '%'`
		args = append(args, locationFilter)
	}
	// original_created_at then id keeps tie-breaks deterministic.
	query += ` ORDER BY original_created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memory candidates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var vec *pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.SourceKind, &rec.SourceID, &rec.ProcessedContent,
			&rec.Location, &rec.OriginalCreatedAt, &vec, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("scanning memory record: %w", err)
		}
		if vec != nil {
			rec.Embedding = vec.Slice()
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) CountByKind(ctx context.Context, kind content.Kind) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memory_records WHERE source_kind = $1`,
		kind,
	).Scan(&count)
	return count, err
}

// DeleteOrphans removes records whose originating post or comment no longer
// exists. Only the full-reprocessing path calls this; incremental indexer
// runs never delete.
func (r *PostgresRepository) DeleteOrphans(ctx context.Context, kind content.Kind) (int64, error) {
	table := "posts"
	if kind == content.KindComment {
		table = "comments"
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM memory_records m
		 WHERE m.source_kind = $1
		   AND NOT EXISTS (SELECT 1 FROM %s s WHERE s.id::text = m.source_id)`, table),
		kind,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting orphaned %s records: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}
