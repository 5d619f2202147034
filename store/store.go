// Package store persists fetch results as one JSON document per record,
// keyed by the derived identifier. Existing records are never overwritten:
// saving a reused identifier versions the key with a timestamp suffix.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	ierrors "github.com/cnosuke/agent-fetch/internal/errors"
	"github.com/cnosuke/agent-fetch/types"
	"go.uber.org/zap"
)

const recordExt = ".json"

// Store is a directory of FetchResult documents.
type Store struct {
	dir string
	now func() time.Time
}

// New creates the record directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, ierrors.New("record directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ierrors.Wrapf(err, "failed to create record directory %s", dir)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Save writes the result as a new record and returns its key. When the
// natural key already exists the record is versioned, never overwritten.
func (s *Store) Save(res *types.FetchResult) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", ierrors.Wrap(err, "failed to serialize record")
	}

	base := sanitizeKey(res.DerivedIdentifier)
	key := base
	for attempt := 0; ; attempt++ {
		if attempt == 1 {
			key = base + "-" + s.now().UTC().Format("20060102T150405Z")
		} else if attempt > 1 {
			key = base + "-" + s.now().UTC().Format("20060102T150405Z") + "-" + strconv.Itoa(attempt-1)
		}

		f, err := os.OpenFile(s.path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", ierrors.Wrapf(err, "failed to create record file for %s", key)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", ierrors.Wrapf(err, "failed to write record %s", key)
		}
		if err := f.Close(); err != nil {
			return "", ierrors.Wrapf(err, "failed to close record %s", key)
		}

		zap.S().Infow("record saved", "key", key, "identifier", res.DerivedIdentifier)
		return key, nil
	}
}

// Load reads one record by its key.
func (s *Store) Load(key string) (*types.FetchResult, error) {
	clean := sanitizeKey(key)
	if clean != key {
		return nil, ierrors.Newf("invalid record key: %q", key)
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to read record %s", key)
	}
	var res types.FetchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, ierrors.Wrapf(err, "failed to parse record %s", key)
	}
	return &res, nil
}

// LoadLatest returns the newest record whose key starts with the identifier,
// together with the key it resolved to.
func (s *Store) LoadLatest(identifier string) (*types.FetchResult, string, error) {
	summaries, err := s.List()
	if err != nil {
		return nil, "", err
	}
	base := sanitizeKey(identifier)
	for _, sum := range summaries { // newest first
		if sum.RecordKey == base || strings.HasPrefix(sum.RecordKey, base+"-") {
			res, err := s.Load(sum.RecordKey)
			return res, sum.RecordKey, err
		}
	}
	return nil, "", ierrors.Newf("no record for identifier %q", identifier)
}

// List returns summaries of all records, newest first. Records that fail to
// parse are skipped with a warning so one corrupt file cannot break the
// listing view.
func (s *Store) List() ([]types.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to read record directory %s", s.dir)
	}

	summaries := make([]types.Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			zap.S().Warnw("skipping unreadable record", "file", name, "error", err)
			continue
		}
		var sum types.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			zap.S().Warnw("skipping malformed record", "file", name, "error", err)
			continue
		}
		sum.RecordKey = strings.TrimSuffix(name, recordExt)
		summaries = append(summaries, sum)
	}

	// Timestamps are fixed-width UTC strings, so lexicographic order is
	// chronological.
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Timestamp != summaries[j].Timestamp {
			return summaries[i].Timestamp > summaries[j].Timestamp
		}
		return summaries[i].RecordKey > summaries[j].RecordKey
	})
	return summaries, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+recordExt)
}

// sanitizeKey restricts keys to a filename-safe charset.
func sanitizeKey(id string) string {
	if id == "" {
		return "record"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "record"
	}
	return out
}
