package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	bucketRecords = []byte("records") // Path -> Record
	bucketRoots   = []byte("roots")   // Root -> RootState
)

// boltJournal implements Journal using BoltDB.
type boltJournal struct {
	db     *bolt.DB
	logger logger.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the journal database.
func Open(cfg Config, log logger.Logger) (Journal, error) {
	if cfg.DBPath == "" {
		return nil, ErrEmptyPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := expandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketRecords); createErr != nil {
			return fmt.Errorf("failed to create records bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketRoots); createErr != nil {
			return fmt.Errorf("failed to create roots bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Info("journal opened", "db_path", dbPath)

	return &boltJournal{
		db:     db,
		logger: log,
		now:    time.Now,
	}, nil
}

// RecordSync implements Journal.RecordSync.
func (j *boltJournal) RecordSync(path, kind string) error {
	if path == "" {
		return ErrEmptyPath
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		rec := Record{Path: path}
		if data := b.Get([]byte(path)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
		}
		rec.Kind = kind
		rec.Count++
		rec.At = j.now()

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := b.Put([]byte(path), data); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}
		return nil
	})
}

// Get implements Journal.Get.
func (j *boltJournal) Get(path string) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	var rec *Record
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(path))
		if data == nil {
			return ErrNotFound
		}

		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Records implements Journal.Records.
func (j *boltJournal) Records(limit int) ([]Record, error) {
	var records []Record

	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				j.logger.Warn("skipping corrupted record", "path", string(k), "error", err)
				return nil
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(records, limit), nil
}

// MarkDirty implements Journal.MarkDirty.
func (j *boltJournal) MarkDirty(root string) error {
	return j.updateRoot(root, func(s *RootState) {
		if !s.Dirty {
			s.DirtySince = j.now()
		}
		s.Dirty = true
		s.Overflows++
	})
}

// MarkClean implements Journal.MarkClean.
func (j *boltJournal) MarkClean(root string) error {
	return j.updateRoot(root, func(s *RootState) {
		s.Dirty = false
		s.DirtySince = time.Time{}
		s.LastFullSync = j.now()
	})
}

func (j *boltJournal) updateRoot(root string, mutate func(*RootState)) error {
	if root == "" {
		return ErrEmptyPath
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoots)

		state := RootState{Root: root}
		if data := b.Get([]byte(root)); data != nil {
			if err := json.Unmarshal(data, &state); err != nil {
				return fmt.Errorf("failed to unmarshal root state: %w", err)
			}
		}
		mutate(&state)

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal root state: %w", err)
		}
		if err := b.Put([]byte(root), data); err != nil {
			return fmt.Errorf("failed to store root state: %w", err)
		}
		return nil
	})
}

// Roots implements Journal.Roots. Keys are iterated in byte order, which
// is path order.
func (j *boltJournal) Roots() ([]RootState, error) {
	var states []RootState

	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoots).ForEach(func(_, v []byte) error {
			var s RootState
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("failed to unmarshal root state: %w", err)
			}
			states = append(states, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Close implements Journal.Close.
func (j *boltJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	j.logger.Info("journal closed")
	return nil
}

// newestFirst sorts records by time, most recent first, and truncates to
// limit.
func newestFirst(records []Record, limit int) []Record {
	sort.Slice(records, func(a, b int) bool {
		if !records[a].At.Equal(records[b].At) {
			return records[a].At.After(records[b].At)
		}
		return records[a].Path < records[b].Path
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
