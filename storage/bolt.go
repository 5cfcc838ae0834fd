package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// defaultBucket holds every key written through Bolt.
	defaultBucket = "authclient"

	openTimeout = time.Second
)

// Bolt is a Storage backed by a single bbolt bucket.
// Unlike Disk it keeps all values in one file and writes are transactional.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens (or creates) the database file at path.
// Callers must Close the store when done.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, errors.New("storage: bolt path is required")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: openTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt: %w", err)
	}

	store := &Bolt{db: db, bucket: []byte(defaultBucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(store.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}

	return store, nil
}

// GetItem implements Storage.
func (b *Bolt) GetItem(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		// raw is only valid inside the transaction.
		value = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("storage: read %q: %w", key, err)
	}

	return value, found, nil
}

// SetItem implements Storage.
func (b *Bolt) SetItem(_ context.Context, key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Storage.
func (b *Bolt) RemoveItem(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
