package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgIndexRepository stores the index in Postgres. The whole index is replaced
// on every save.
type PgIndexRepository struct {
	db dbtx
	tx *TxRunner
}

func NewPgIndexRepository(pool *pgxpool.Pool) *PgIndexRepository {
	return &PgIndexRepository{db: pool, tx: NewTxRunner(pool)}
}

func (r *PgIndexRepository) Save(ctx context.Context, idx *domain.Index) error {
	if err := domain.ValidateIndex(idx); err != nil {
		return err
	}

	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM index_chunks`); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM index_meta`); err != nil {
			return fmt.Errorf("clear meta: %w", err)
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO index_meta (id, version, strategy, model, dimensions, chunk_count, built_at)
			 VALUES (1, $1, $2, $3, $4, $5, $6)`,
			idx.Version,
			string(idx.Strategy),
			idx.Model,
			idx.Dimensions,
			len(idx.Chunks),
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}

		for i, c := range idx.Chunks {
			var embedding any
			if idx.HasVectors() {
				embedding = pgvector.NewVector(idx.Vectors[i])
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO index_chunks (position, id, source, chunk_index, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				i,
				c.ID,
				c.Source,
				c.Index,
				c.Content,
				embedding,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *PgIndexRepository) Load(ctx context.Context) (*domain.Index, error) {
	idx := &domain.Index{}
	var strategy string
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT version, strategy, model, dimensions, chunk_count FROM index_meta WHERE id = 1`,
	).Scan(&idx.Version, &strategy, &idx.Model, &idx.Dimensions, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIndexNotBuilt
		}
		return nil, fmt.Errorf("load meta: %w", err)
	}
	idx.Strategy = domain.ChunkStrategy(strategy)

	rows, err := r.db.Query(ctx,
		`SELECT id::text, source, chunk_index, content, embedding::text
		 FROM index_chunks
		 ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	idx.Chunks = make([]domain.Chunk, 0, count)
	var vectors [][]float32
	for rows.Next() {
		var c domain.Chunk
		var embedding *string
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Content, &embedding); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		idx.Chunks = append(idx.Chunks, c)

		if embedding != nil {
			var v pgvector.Vector
			if err := v.Parse(*embedding); err != nil {
				return nil, fmt.Errorf("parse embedding of chunk %s: %w", c.ID, err)
			}
			vectors = append(vectors, v.Slice())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	if len(vectors) > 0 {
		idx.Vectors = vectors
	}
	if err := domain.ValidateIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Fingerprint changes whenever a new index is saved.
func (r *PgIndexRepository) Fingerprint(ctx context.Context) (string, error) {
	var builtAt time.Time
	err := r.db.QueryRow(ctx, `SELECT built_at FROM index_meta WHERE id = 1`).Scan(&builtAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrIndexNotBuilt
		}
		return "", err
	}
	return builtAt.UTC().Format(time.RFC3339Nano), nil
}
