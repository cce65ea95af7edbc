package local

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

// badgerBackend stores every table under the key prefix "<table>\x00".
type badgerBackend struct {
	db *badger.DB
}

// BadgerOptions configures the badger backend.
type BadgerOptions struct {
	// Dir is the data directory, ignored if InMemory is set
	Dir string
	// InMemory keeps all data in memory (used by tests)
	InMemory bool
	// SyncWrites flushes every write to disk before returning
	SyncWrites bool
}

// NewBadgerBackend opens a badger database as Backend.
// Badger log output goes to the "badger" logger.
func NewBadgerBackend(opts BadgerOptions) (Backend, error) {
	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}

	bopts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(logger.GetLogger("badger"))

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &badgerBackend{db: db}, nil
}

func tablePrefix(table string) []byte {
	return append([]byte(table), 0)
}

func tableKey(table, key string) []byte {
	return append(tablePrefix(table), key...)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see Backend)
// --------------------------------------------------------------------------

func (b *badgerBackend) Get(table, key string) (value []byte, found bool, err error) {
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tableKey(table, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, found, err
}

func (b *badgerBackend) Set(table, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tableKey(table, key), value)
	})
}

func (b *badgerBackend) Delete(table, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tableKey(table, key))
	})
}

func (b *badgerBackend) Range(table, prefix string, fn func(key string, value []byte) bool) error {
	tp := tablePrefix(table)
	full := tableKey(table, prefix)

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = full
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(full); iter.ValidForPrefix(full); iter.Next() {
			item := iter.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(string(item.Key()[len(tp):]), value) {
				return nil
			}
		}
		return nil
	})
}

func (b *badgerBackend) DropTable(table string) error {
	return b.db.DropPrefix(tablePrefix(table))
}

func (b *badgerBackend) Close() error {
	return b.db.Close()
}
