package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads community content for indexing.
type Repository interface {
	// FindSince returns items of the given kind created strictly after
	// `since`, in ascending created_at order, capped at limit.
	FindSince(ctx context.Context, kind Kind, since time.Time, limit int) ([]SourceItem, error)
	// FindRecent returns the most recent items of the given kind, in
	// ascending created_at order, capped at limit.
	FindRecent(ctx context.Context, kind Kind, limit int) ([]SourceItem, error)
	// FindByID returns one item, or nil if it does not exist.
	FindByID(ctx context.Context, kind Kind, id string) (*SourceItem, error)
}

// PostgresRepository implements Repository over the platform's posts and
// comments tables.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new content repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindPost:
		return "posts", nil
	case KindComment:
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
}

func (r *PostgresRepository) FindSince(ctx context.Context, kind Kind, since time.Time, limit int) ([]SourceItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, content, COALESCE(location, ''), COALESCE(author_location, ''), created_at
		 FROM %s
		 WHERE created_at > $1
		 ORDER BY created_at ASC
		 LIMIT $2`, table),
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s since %s: %w", table, since, err)
	}
	defer rows.Close()

	return scanItems(rows, kind)
}

func (r *PostgresRepository) FindRecent(ctx context.Context, kind Kind, limit int) ([]SourceItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	// Newest N selected in a subquery, then flipped back to ascending order
	// so callers always see items oldest-first.
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, content, location, author_location, created_at FROM (
		    SELECT id, content, COALESCE(location, '') AS location,
		           COALESCE(author_location, '') AS author_location, created_at
		    FROM %s
		    ORDER BY created_at DESC
		    LIMIT $1
		 ) recent
		 ORDER BY created_at ASC`, table),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent %s: %w", table, err)
	}
	defer rows.Close()

	return scanItems(rows, kind)
}

func (r *PostgresRepository) FindByID(ctx context.Context, kind Kind, id string) (*SourceItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var item SourceItem
	item.Kind = kind
	err = r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT id, content, COALESCE(location, ''), COALESCE(author_location, ''), created_at
		 FROM %s WHERE id = $1`, table),
		id,
	).Scan(&item.ID, &item.Content, &item.Location, &item.AuthorLocation, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s %s: %w", kind, id, err)
	}
	return &item, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanItems(rows pgxRows, kind Kind) ([]SourceItem, error) {
	var items []SourceItem
	for rows.Next() {
		item := SourceItem{Kind: kind}
		if err := rows.Scan(&item.ID, &item.Content, &item.Location, &item.AuthorLocation, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", kind, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
