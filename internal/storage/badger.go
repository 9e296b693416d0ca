package storage

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerStore is the durable entity store. Keys are laid out as
// "<kind>/<key>" so a prefix scan over a kind enumerates every entity
// of that kind during warm restore.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open entity store at %s: %w", dir, err)
	}

	log.Info().Str("dir", dir).Msg("entity store opened")
	return &BadgerStore{db: db, log: log}, nil
}

func storeKey(kind, key string) []byte {
	return []byte(kind + "/" + key)
}

// Put upserts a batch of records in a single transaction.
func (s *BadgerStore) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range records {
		if err := wb.Set(storeKey(rec.Kind, rec.Key), rec.Value); err != nil {
			return fmt.Errorf("stage %s/%s: %w", rec.Kind, rec.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush entity batch: %w", err)
	}
	return nil
}

// Get fetches a single entity. The second return reports existence.
func (s *BadgerStore) Get(ctx context.Context, kind, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(kind, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", kind, key, err)
	}
	return value, true, nil
}

// Scan visits every entity of a kind. fn receives the bare key (prefix
// stripped) and the value; returning an error stops the scan.
func (s *BadgerStore) Scan(ctx context.Context, kind string, fn func(key string, value []byte) error) error {
	prefix := []byte(kind + "/")

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("scan %s: read %s: %w", kind, key, err)
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
