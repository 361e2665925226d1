package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
	bolt "go.etcd.io/bbolt"
)

// database buckets
var (
	// bucketContracts maps contract ids to JSON-encoded contracts.
	bucketContracts = []byte("contracts")
)

// BoltStore implements RecordStore with a Bolt key-value database. Bolt
// serialises write transactions, so the version check and the write in Set
// happen atomically.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContracts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bolt database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(_ context.Context, id string) (*model.Contract, error) {
	var c *model.Contract
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketContracts).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		c = new(model.Contract)
		return json.Unmarshal(v, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BoltStore) Set(_ context.Context, c *model.Contract) error {
	next := c.Clone()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContracts)
		var storedVersion int64
		v := b.Get([]byte(c.ID))
		if v != nil {
			var stored model.Contract
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			storedVersion = stored.Version
		}
		if err := checkVersion(c, v != nil, storedVersion); err != nil {
			return err
		}

		next.Version++
		next.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.ID), data)
	})
	if err != nil {
		return err
	}
	c.Version = next.Version
	c.UpdatedAt = next.UpdatedAt
	return nil
}

// ListIDs returns ids ordered by creation time, newest first
func (s *BoltStore) ListIDs(_ context.Context) ([]string, error) {
	type entry struct {
		id      string
		created time.Time
	}
	var entries []entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContracts).ForEach(func(k, v []byte) error {
			var c struct {
				CreatedAt time.Time `json:"created_at"`
			}
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			entries = append(entries, entry{id: string(k), created: c.CreatedAt})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].created.After(entries[j].created)
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContracts)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}
