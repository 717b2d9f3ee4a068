package rtree

import (
	"os"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const scratchBatchSize = 4096

// scratch is a sorted on-disk key/value store that lives only as long as a
// Builder.
type scratch interface {
	Put(key, value []byte) error
	// Iterate visits all pairs in key order. Slices are only valid within fn.
	Iterate(fn func(key, value []byte) error) error
	Close() error
}

func openScratch(backend Backend, dir string) (scratch, error) {
	switch backend {
	case LevelDB:
		return openLevelScratch(dir)
	case Badger:
		return openBadgerScratch(dir)
	}
	return nil, errBadBackend
}

// removeScratch deletes a scratch store directory.
func removeScratch(dir string) error {
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------

type levelScratch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func openLevelScratch(dir string) (*levelScratch, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		NoSync:       true,
		ErrorIfExist: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "rtree: open leveldb scratch %s", dir)
	}
	return &levelScratch{db: db, batch: new(leveldb.Batch)}, nil
}

func (s *levelScratch) Put(key, value []byte) error {
	s.batch.Put(key, value)
	if s.batch.Len() >= scratchBatchSize {
		return s.flush()
	}
	return nil
}

func (s *levelScratch) flush() error {
	if s.batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(s.batch, nil); err != nil {
		return err
	}
	s.batch.Reset()
	return nil
}

func (s *levelScratch) Iterate(fn func(key, value []byte) error) error {
	if err := s.flush(); err != nil {
		return err
	}

	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *levelScratch) Close() error { return s.db.Close() }

// --------------------------------------------------------------------

type badgerScratch struct {
	db    *badger.DB
	batch *badger.WriteBatch
	size  int
}

func openBadgerScratch(dir string) (*badgerScratch, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "rtree: open badger scratch %s", dir)
	}
	return &badgerScratch{db: db, batch: db.NewWriteBatch()}, nil
}

func (s *badgerScratch) Put(key, value []byte) error {
	// the batch keeps references, so hand it copies
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := s.batch.Set(k, v); err != nil {
		return err
	}
	if s.size++; s.size >= scratchBatchSize {
		return s.flush()
	}
	return nil
}

func (s *badgerScratch) flush() error {
	if s.size == 0 {
		return nil
	}
	if err := s.batch.Flush(); err != nil {
		return err
	}
	s.batch = s.db.NewWriteBatch()
	s.size = 0
	return nil
}

func (s *badgerScratch) Iterate(fn func(key, value []byte) error) error {
	if err := s.flush(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerScratch) Close() error {
	s.batch.Cancel()
	return s.db.Close()
}
