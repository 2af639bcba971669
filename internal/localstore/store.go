// Package localstore is the durable client-side mirror: pending
// progress writes waiting out a backend outage, plus the last-known
// progress snapshot for instant reload. Backed by an embedded
// key-value store so entries survive process restarts.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/example/triplehelix/pkg/models"
)

// Bucket separates the two recovery tiers. Session entries belong to
// the current process run and are replayed first on recovery; durable
// entries may be left over from any earlier run and replay after.
type Bucket string

const (
	BucketSession Bucket = "session"
	BucketDurable Bucket = "durable"
)

const snapshotPrefix = "snapshot/"

// Store wraps the embedded KV database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the mirror store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is too chatty for a mirror store
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func pendingKey(bucket Bucket, updateKey string) []byte {
	return []byte("pending/" + string(bucket) + "/" + updateKey)
}

// PutPending mirrors a pending progress write into the given bucket.
// A later write for the same (user, thread, stitch) key overwrites the
// earlier one, so a stale retry never resurrects old state.
func (s *Store) PutPending(bucket Bucket, update models.ProgressUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal pending update: %v", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(bucket, update.Key()), data)
	})
	if err != nil {
		return fmt.Errorf("failed to mirror pending update: %v", err)
	}
	return nil
}

// DeletePending removes the mirror entry for updateKey from both
// buckets. Called after the remote write finally lands.
func (s *Store) DeletePending(updateKey string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, bucket := range []Bucket{BucketSession, BucketDurable} {
			if err := txn.Delete(pendingKey(bucket, updateKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete pending mirror: %v", err)
	}
	return nil
}

// PendingWrites returns all mirrored updates in the given bucket.
func (s *Store) PendingWrites(bucket Bucket) ([]models.ProgressUpdate, error) {
	var updates []models.ProgressUpdate
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("pending/" + string(bucket) + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var update models.ProgressUpdate
				if err := json.Unmarshal(val, &update); err != nil {
					// A corrupt mirror entry is not worth failing the
					// whole scan over; skip it.
					return nil
				}
				updates = append(updates, update)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending mirror: %v", err)
	}
	return updates, nil
}

// PromoteSessionToDurable moves every session-bucket entry into the
// durable bucket. Called on shutdown so an interrupted session's
// pending writes are found by the next run's recovery scan.
func (s *Store) PromoteSessionToDurable() error {
	pending, err := s.PendingWrites(BucketSession)
	if err != nil {
		return err
	}
	for _, update := range pending {
		if err := s.PutPending(BucketDurable, update); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(pendingKey(BucketSession, update.Key()))
		})
		if err != nil {
			return fmt.Errorf("failed to clear session mirror: %v", err)
		}
	}
	return nil
}

// PutSnapshot stores the last-known progress state for a user.
func (s *Store) PutSnapshot(state models.UserProgressState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+state.UserID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %v", err)
	}
	return nil
}

// GetSnapshot loads the last-known progress state for a user. The
// second return value is false when none exists.
func (s *Store) GetSnapshot(userID string) (models.UserProgressState, bool, error) {
	var state models.UserProgressState
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &state); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return models.UserProgressState{}, false, fmt.Errorf("failed to load snapshot: %v", err)
	}
	return state, found, nil
}

// DeleteSnapshot removes a user's stored snapshot.
func (s *Store) DeleteSnapshot(userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(snapshotPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %v", err)
	}
	return nil
}

// RekeySnapshot moves a snapshot from one owner key to another, used
// when an anonymous session is claimed by an authenticated user.
func (s *Store) RekeySnapshot(fromUserID, toUserID string) error {
	state, found, err := s.GetSnapshot(fromUserID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	state.UserID = toUserID
	if err := s.PutSnapshot(state); err != nil {
		return err
	}
	return s.DeleteSnapshot(fromUserID)
}
