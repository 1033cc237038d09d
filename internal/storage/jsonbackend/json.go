package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/FranksOps/dorkr/internal/storage"
)

// ensure jsonArchive implements storage.Archive
var _ storage.Archive = (*jsonArchive)(nil)

type jsonArchive struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (or creates) an NDJSON archive at filePath. Records are appended.
func New(filePath string) (storage.Archive, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json archive: %w", err)
	}
	return &jsonArchive{file: f}, nil
}

func (a *jsonArchive) Save(ctx context.Context, records ...storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf []byte
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(buf); err != nil {
		return fmt.Errorf("append records: %w", err)
	}
	return nil
}

func (a *jsonArchive) Query(ctx context.Context, filter storage.Filter) ([]storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind json archive: %w", err)
	}
	defer func() {
		_, _ = a.file.Seek(0, io.SeekEnd)
	}()

	// NDJSON has no index: read everything, filter, then order and window.
	var matched []storage.Record
	scanner := bufio.NewScanner(a.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		if filter.Dork != "" && r.Dork != filter.Dork {
			continue
		}
		if filter.RunID != "" && r.RunID != filter.RunID {
			continue
		}
		if filter.Since != nil && r.ScrapedAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan json archive: %w", err)
	}

	slices.SortStableFunc(matched, func(x, y storage.Record) int {
		if c := y.ScrapedAt.Compare(x.ScrapedAt); c != 0 {
			return c
		}
		return x.Position - y.Position
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []storage.Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (a *jsonArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
