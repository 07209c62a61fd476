package kv

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Store is a Badger-backed Gateway for sessions that must survive a
// process restart.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) a Badger database at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, bool) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("badger get failed")
		return nil, false
	}
	return raw, true
}

func (s *Store) Set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) Remove(key string) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("badger delete failed")
	}
}
