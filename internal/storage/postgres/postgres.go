package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresArchive implements storage.Archive
var _ storage.Archive = (*postgresArchive)(nil)

type postgresArchive struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS dork_results (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	dork TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS dork_results_dork_idx ON dork_results (dork, scraped_at);
`

// New connects to Postgres at dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}

	return &postgresArchive{pool: pool}, nil
}

func (a *postgresArchive) Save(ctx context.Context, records ...storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.RunID, r.Dork, r.Position, r.Title, r.Link, r.ScrapedAt})
	}

	_, err := a.pool.CopyFrom(ctx,
		pgx.Identifier{"dork_results"},
		[]string{"run_id", "dork", "position", "title", "link", "scraped_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy records: %w", err)
	}
	return nil
}

func (a *postgresArchive) Query(ctx context.Context, filter storage.Filter) ([]storage.Record, error) {
	query := `SELECT run_id, dork, position, title, link, scraped_at FROM dork_results WHERE 1=1`
	args := []any{}

	if filter.Dork != "" {
		args = append(args, filter.Dork)
		query += fmt.Sprintf(` AND dork = $%d`, len(args))
	}
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(` AND run_id = $%d`, len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(` AND scraped_at >= $%d`, len(args))
	}

	query += ` ORDER BY scraped_at DESC, id ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postgres: %w", err)
	}
	defer rows.Close()

	records := []storage.Record{}
	for rows.Next() {
		var r storage.Record
		if err := rows.Scan(&r.RunID, &r.Dork, &r.Position, &r.Title, &r.Link, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (a *postgresArchive) Close() error {
	a.pool.Close()
	return nil
}
