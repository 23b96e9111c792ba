package store

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// SnapshotStore keeps the raw fetched HTML of each article, gzip-compressed
// in Badger. One snapshot per article; it lives and dies with the article
// row.
type SnapshotStore struct {
	db *badger.DB
}

// OpenSnapshots opens the snapshot database at path. Pass an empty path to
// run in-memory (tests).
func OpenSnapshots(path string) (*SnapshotStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func snapshotKey(id int64) []byte {
	return []byte("snapshot:" + strconv.FormatInt(id, 10))
}

// Save stores the raw document for the article id, replacing any previous
// snapshot.
func (s *SnapshotStore) Save(id int64, raw []byte) error {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(id), compressed.Bytes())
	})
	if err != nil {
		return fmt.Errorf("save snapshot %d: %w", id, err)
	}
	return nil
}

// Get returns the decompressed snapshot, or ErrNotFound.
func (s *SnapshotStore) Get(id int64) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			zr, err := gzip.NewReader(bytes.NewReader(val))
			if err != nil {
				return err
			}
			defer zr.Close()
			raw, err = io.ReadAll(zr)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return raw, nil
}

// Delete removes the snapshot; deleting a missing one is not an error.
func (s *SnapshotStore) Delete(id int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	return nil
}
