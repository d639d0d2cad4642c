package storage

import (
	"encoding/json"
	stderrors "errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/timegrid/internal/model"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = stderrors.New("key not found")
)

// IsErrKeyNotFound returns true if the error is a key not found error.
func IsErrKeyNotFound(err error) bool {
	return stderrors.Is(err, ErrKeyNotFound) || stderrors.Is(err, badger.ErrKeyNotFound)
}

// Get retrieves a value by key and unmarshals it into v.
func (d *DB) Get(key string, v model.Model) error {
	return d.db.View(func(txn *badger.Txn) error {
		return readInto(txn, key, v)
	})
}

func readInto(txn *badger.Txn, key string, v model.Model) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
}

// Set stores a model in the database.
func (d *DB) Set(v model.Model) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(v.GetKey()), data)
	})
}

// Delete removes a key, returning ErrKeyNotFound when it was absent.
func (d *DB) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists in the database.
func (d *DB) Exists(key string) (bool, error) {
	var exists bool
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// ListByPrefix retrieves all keys with the given prefix.
func (d *DB) ListByPrefix(prefix string) ([]string, error) {
	var keys []string
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Modify reads the model at key into v, lets fn change it and writes it back
// in one transaction. fn returning an error aborts the write.
func Modify[T model.Model](d *DB, key string, v T, fn func(T) error) error {
	return d.db.Update(func(txn *badger.Txn) error {
		if err := readInto(txn, key, v); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), data)
	})
}

// GetAllByPrefix retrieves all values with the given prefix.
func GetAllByPrefix[T model.Model](d *DB, prefix string, newFunc func() T) ([]T, error) {
	return GetFilteredByPrefix(d, prefix, newFunc, nil, 0)
}

// GetFilteredByPrefix retrieves the values with the given prefix that pass
// keep (nil keeps everything), stopping after limit matches when limit > 0.
func GetFilteredByPrefix[T model.Model](d *DB, prefix string, newFunc func() T, keep func(T) bool, limit int) ([]T, error) {
	var results []T
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			v := newFunc()
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, v)
			})
			if err != nil {
				return err
			}
			v.SetKey(string(item.KeyCopy(nil)))
			if keep != nil && !keep(v) {
				continue
			}
			results = append(results, v)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	return results, err
}
