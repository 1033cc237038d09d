package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/dorkr/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteArchive implements storage.Archive
var _ storage.Archive = (*sqliteArchive)(nil)

type sqliteArchive struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS dork_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	dork TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS dork_results_dork_idx ON dork_results (dork, scraped_at);
`

// New opens a SQLite archive at dsn, creating the schema if needed.
func New(dsn string) (storage.Archive, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &sqliteArchive{db: db}, nil
}

func (a *sqliteArchive) Save(ctx context.Context, records ...storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO dork_results (run_id, dork, position, title, link, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Dork, r.Position, r.Title, r.Link, r.ScrapedAt.UTC()); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (a *sqliteArchive) Query(ctx context.Context, filter storage.Filter) ([]storage.Record, error) {
	query := `SELECT run_id, dork, position, title, link, scraped_at FROM dork_results WHERE 1=1`
	args := []any{}

	if filter.Dork != "" {
		query += ` AND dork = ?`
		args = append(args, filter.Dork)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Since != nil {
		query += ` AND scraped_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY scraped_at DESC, id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sqlite: %w", err)
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

func (a *sqliteArchive) Close() error {
	return a.db.Close()
}
