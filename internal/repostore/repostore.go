// Package repostore persists the history of snapshots a backup run
// produces: each commit's root entry, timestamp, and message, in a
// bbolt-backed log that survives process restarts.
package repostore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSnapshots = []byte("snapshots") // big-endian uint64 id -> Snapshot JSON
	bucketMeta      = []byte("meta")      // "latest" -> big-endian uint64 id
)

// Snapshot is one recorded backup run.
type Snapshot struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	RootRef   string    `json:"root_ref"`
	SourceDir string    `json:"source_dir"`
	Message   string    `json:"message,omitempty"`
}

// Store is the snapshot-history log for one backup directory.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the snapshot log at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("repostore: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnapshots); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repostore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append records a new snapshot, assigning it the next sequence ID, and
// advances the "latest" pointer to it.
func (s *Store) Append(rootRef, sourceDir, message string, createdAt time.Time) (Snapshot, error) {
	var snap Snapshot
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		snap = Snapshot{ID: id, CreatedAt: createdAt, RootRef: rootRef, SourceDir: sourceDir, Message: message}
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if err := b.Put(idKey(id), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte("latest"), idKey(id))
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("repostore: append: %w", err)
	}
	return snap, nil
}

// Get returns the snapshot recorded under id.
func (s *Store) Get(id uint64) (Snapshot, bool, error) {
	var snap Snapshot
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get(idKey(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("repostore: get %d: %w", id, err)
	}
	return snap, found, nil
}

// Latest returns the most recently appended snapshot, if any.
func (s *Store) Latest() (Snapshot, bool, error) {
	var id uint64
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte("latest"))
		if data == nil {
			return nil
		}
		found = true
		id = binary.BigEndian.Uint64(data)
		return nil
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("repostore: latest: %w", err)
	}
	if !found {
		return Snapshot{}, false, nil
	}
	return s.Get(id)
}

// List returns all recorded snapshots, oldest first.
func (s *Store) List() ([]Snapshot, error) {
	var out []Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(_, v []byte) error {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return err
			}
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("repostore: list: %w", err)
	}
	return out, nil
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}
