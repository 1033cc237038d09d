// Package archive resolves an archive DSN to a storage.Archive backend.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/FranksOps/dorkr/internal/storage/jsonbackend"
	"github.com/FranksOps/dorkr/internal/storage/postgres"
	"github.com/FranksOps/dorkr/internal/storage/sqlite"
)

// Open picks a backend from the DSN scheme:
//
//	sqlite:<path>                 modernc.org/sqlite file
//	jsonl:<path>                  newline-delimited JSON file
//	postgres://... postgresql://  pgx pool
func Open(ctx context.Context, dsn string) (storage.Archive, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("archive dsn %q: missing path", dsn)
		}
		return sqlite.New(path)
	case strings.HasPrefix(dsn, "jsonl:"):
		path := strings.TrimPrefix(dsn, "jsonl:")
		if path == "" {
			return nil, fmt.Errorf("archive dsn %q: missing path", dsn)
		}
		return jsonbackend.New(path)
	default:
		return nil, fmt.Errorf("archive dsn %q: unsupported scheme (want sqlite:, jsonl: or postgres://)", dsn)
	}
}
