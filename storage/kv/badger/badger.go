// Package badgerkv persists grade drafts in an embedded badger database.
package badgerkv

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/draft"
)

type Backend struct {
	db *badger.DB
}

var _ draft.Backend = (*Backend)(nil)

// Open opens (or creates) the database in dir. With inMemory set nothing
// touches the disk and dir is ignored.
func Open(dir string, inMemory bool) (*Backend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Load(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, draft.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", key)
	}
	return data, nil
}

func (b *Backend) Save(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	return errors.Wrapf(err, "saving %s", key)
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "deleting %s", key)
}

func (b *Backend) Close() error {
	return errors.Wrap(b.db.Close(), "closing badger")
}
