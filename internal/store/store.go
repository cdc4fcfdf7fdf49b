// Package store provides a thin bbolt wrapper that keeps the raw payloads
// of successful fetches, so a restarted process can publish the last good
// snapshot before its first refresh completes.
//
// Buckets:
//
//	payloads    raw dashboard_data.json bodies keyed by fetch time
//	predictions raw prediction_data.json bodies keyed by fetch time
//	_meta       internal: schema version, created_at
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/tubestats/internal/util"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// keyLayout is fixed-width so keys sort chronologically.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// Bucket names.
const (
	BucketPayloads    = "payloads"
	BucketPredictions = "predictions"
)

var bucketInternal = []byte("_meta")

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{BucketPayloads, BucketPredictions}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketPayloads, BucketPredictions, string(bucketInternal)} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Meta returns the internal metadata (schema_version, created_at).
func (s *Store) Meta() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInternal).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// ─── Entries ──────────────────────────────────────────────────────────────────

// Entry describes one stored body.
type Entry struct {
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket"`
	FetchedAt time.Time `json:"fetched_at"`
	Bytes     int       `json:"bytes"`
}

// Key formats t as a storage key.
func Key(t time.Time) string {
	return t.UTC().Format(keyLayout)
}

func entry(bucket string, k, v []byte) Entry {
	t, _ := time.Parse(keyLayout, string(k))
	return Entry{Key: string(k), Bucket: bucket, FetchedAt: t, Bytes: len(v)}
}

func (s *Store) put(bucket string, at time.Time, body []byte) (Entry, error) {
	k := []byte(Key(at))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(k, body)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("storing %s: %w", bucket, err)
	}
	return entry(bucket, k, body), nil
}

// latest returns the newest body in bucket. bbolt values are only valid
// inside the transaction, so the body is copied out.
func (s *Store) latest(bucket string) (Entry, []byte, bool, error) {
	var (
		e     Entry
		body  []byte
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket([]byte(bucket)).Cursor().Last()
		if k == nil {
			return nil
		}
		found = true
		e = entry(bucket, k, v)
		body = append([]byte(nil), v...)
		return nil
	})
	return e, body, found, err
}

func (s *Store) get(bucket, key string) ([]byte, bool, error) {
	var body []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucket)).Get([]byte(key)); v != nil {
			body = append([]byte(nil), v...)
		}
		return nil
	})
	return body, body != nil, err
}

// list returns entries newest first.
func (s *Store) list(bucket string) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			out = append(out, entry(bucket, k, v))
		}
		return nil
	})
	return out, err
}

// ─── Payloads ─────────────────────────────────────────────────────────────────

// PutPayload stores a raw dashboard body fetched at at.
func (s *Store) PutPayload(at time.Time, body []byte) (Entry, error) {
	return s.put(BucketPayloads, at, body)
}

// LatestPayload returns the newest dashboard body.
// Returns (entry, body, true, nil) if found, (zero, nil, false, nil) if empty.
func (s *Store) LatestPayload() (Entry, []byte, bool, error) {
	return s.latest(BucketPayloads)
}

// GetPayload returns the dashboard body stored under key.
func (s *Store) GetPayload(key string) ([]byte, bool, error) {
	return s.get(BucketPayloads, key)
}

// ListPayloads returns dashboard entries, newest first.
func (s *Store) ListPayloads() ([]Entry, error) {
	return s.list(BucketPayloads)
}

// ─── Predictions ──────────────────────────────────────────────────────────────

// PutPredictions stores a raw prediction body fetched (or generated) at at.
func (s *Store) PutPredictions(at time.Time, body []byte) (Entry, error) {
	return s.put(BucketPredictions, at, body)
}

// LatestPredictions returns the newest prediction body.
func (s *Store) LatestPredictions() (Entry, []byte, bool, error) {
	return s.latest(BucketPredictions)
}

// GetPredictions returns the prediction body stored under key.
func (s *Store) GetPredictions(key string) ([]byte, bool, error) {
	return s.get(BucketPredictions, key)
}

// ListPredictions returns prediction entries, newest first.
func (s *Store) ListPredictions() ([]Entry, error) {
	return s.list(BucketPredictions)
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// Prune keeps the newest keep entries in every bucket and deletes the
// rest. It returns how many entries were removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must be >= 0, got %d", keep)
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			var stale [][]byte
			seen := 0
			c := b.Cursor()
			for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
				seen++
				if seen > keep {
					stale = append(stale, append([]byte(nil), k...))
				}
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += len(stale)
		}
		return nil
	})
	return removed, err
}

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	known := false
	for _, b := range AllBuckets {
		if b == name {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown bucket %q", name)
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket. A failure
// on one bucket does not stop the others; all failures are returned.
func (s *Store) ClearAll() error {
	var errs util.MultiError
	for _, name := range AllBuckets {
		errs.Add(s.ClearBucket(name))
	}
	return errs.Err()
}
