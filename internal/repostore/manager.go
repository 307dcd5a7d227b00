package repostore

import (
	"fmt"
	"path/filepath"
	"sync"
)

// manager provides shared, reference-counted database access so that
// multiple casbak components in the same process (e.g. the CLI's log
// and export paths) don't each open their own bbolt handle and contend
// for its file lock.
type manager struct {
	mu     sync.Mutex
	store  *Store
	dbPath string
	refs   int
}

var (
	globalManager *manager
	managerMu     sync.Mutex
)

// SharedStore wraps a Store with reference-counted lifetime: the
// underlying database closes only once every SharedStore obtained for
// the same backup directory has been closed.
type SharedStore struct {
	mgr *manager
	*Store
}

// GetShared returns a shared Store for the snapshot log under
// backupDir. Concurrent callers within the same process for the same
// backupDir share one underlying *bbolt.DB.
func GetShared(backupDir string) (*SharedStore, error) {
	managerMu.Lock()
	defer managerMu.Unlock()

	dbPath := filepath.Join(backupDir, "snapshots.db")

	if globalManager == nil || globalManager.dbPath != dbPath {
		if globalManager != nil {
			globalManager.close()
		}
		store, err := Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("repostore: open shared store: %w", err)
		}
		globalManager = &manager{store: store, dbPath: dbPath}
	}

	globalManager.refs++
	return &SharedStore{mgr: globalManager, Store: globalManager.store}, nil
}

// Close decrements the reference count, closing the underlying database
// once the count reaches zero.
func (s *SharedStore) Close() error {
	if s.mgr == nil {
		return nil
	}
	managerMu.Lock()
	defer managerMu.Unlock()

	s.mgr.refs--
	if s.mgr.refs <= 0 {
		err := s.mgr.close()
		globalManager = nil
		return err
	}
	return nil
}

func (m *manager) close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
