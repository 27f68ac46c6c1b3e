package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagenet/sage-hub/internal/model"
	"go.uber.org/zap"
)

// PostgresKV persists column families in a single entities table keyed by
// (family, uuid). Values are the canonical JSON bytes. It implements KV.
type PostgresKV struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresKV creates a PostgresKV backed by the given pool and ensures
// the schema exists.
func NewPostgresKV(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresKV, error) {
	kv := &PostgresKV{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hub_entities (
			family TEXT NOT NULL,
			uuid   TEXT COLLATE "C" NOT NULL,
			doc    BYTEA NOT NULL,
			PRIMARY KEY (family, uuid)
		)`); err != nil {
		return nil, fmt.Errorf("ensure hub_entities schema: %w", err)
	}
	return kv, nil
}

// Put implements KV.
func (p *PostgresKV) Put(ctx context.Context, family, key string, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO hub_entities (family, uuid, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (family, uuid) DO UPDATE SET doc = EXCLUDED.doc`,
		family, key, value,
	)
	if err != nil {
		return model.DatabaseError(err.Error())
	}
	return nil
}

// Get implements KV.
func (p *PostgresKV) Get(ctx context.Context, family, key string) ([]byte, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT doc FROM hub_entities WHERE family = $1 AND uuid = $2",
		family, key,
	)
	if err != nil {
		return nil, model.DatabaseError(err.Error())
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, model.DatabaseError(err.Error())
		}
		return nil, nil
	}
	var doc []byte
	if err := rows.Scan(&doc); err != nil {
		return nil, model.DatabaseError(err.Error())
	}
	return doc, nil
}

// Delete implements KV.
func (p *PostgresKV) Delete(ctx context.Context, family, key string) error {
	_, err := p.pool.Exec(ctx,
		"DELETE FROM hub_entities WHERE family = $1 AND uuid = $2",
		family, key,
	)
	if err != nil {
		return model.DatabaseError(err.Error())
	}
	return nil
}

// Scan implements KV. Ordering relies on the text collation of the
// primary key matching byte order, so the column uses the C collation
// semantics of plain comparison on ASCII UUIDs.
func (p *PostgresKV) Scan(ctx context.Context, family, after string, limit int) ([]Pair, error) {
	query := "SELECT uuid, doc FROM hub_entities WHERE family = $1 AND uuid > $2 ORDER BY uuid"
	args := []any{family, after}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.DatabaseError(err.Error())
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var pair Pair
		if err := rows.Scan(&pair.Key, &pair.Value); err != nil {
			return nil, model.DatabaseError(err.Error())
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, model.DatabaseError(err.Error())
	}
	return pairs, nil
}

// Count implements KV.
func (p *PostgresKV) Count(ctx context.Context, family string) (uint64, error) {
	var count int64
	if err := p.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM hub_entities WHERE family = $1", family,
	).Scan(&count); err != nil {
		return 0, model.DatabaseError(err.Error())
	}
	return uint64(count), nil
}

// Close implements KV.
func (p *PostgresKV) Close() {
	p.pool.Close()
}
