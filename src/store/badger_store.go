package store

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger"
	cm "github.com/fractalnet/fractal/src/common"
	"github.com/fractalnet/fractal/src/posts"
)

const (
	postPrefix = "post"
	metaPrefix = "meta"
)

// BadgerStore implements the Store interface on top of a Badger database.
// Every logical write is a single Update transaction, so a post upsert is
// atomic with respect to that record even when two handlers touch the same
// id back-to-back.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, a Badger database at the given path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithLogger(nil)

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:   handle,
		path: path,
	}

	return store, nil
}

//==============================================================================
//Keys

func postKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", postPrefix, id))
}

func metaKey(key string) []byte {
	return []byte(fmt.Sprintf("%s_%s", metaPrefix, key))
}

//==============================================================================
//Implement the Store interface

// GetPost implements the Store interface.
func (s *BadgerStore) GetPost(id string) (*posts.Post, error) {
	var raw []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(postKey(id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "post", id)
	}

	post := new(posts.Post)
	if err := post.Unmarshal(raw); err != nil {
		return nil, err
	}

	return post, nil
}

// AllPosts implements the Store interface.
func (s *BadgerStore) AllPosts() ([]*posts.Post, error) {
	res := []*posts.Post{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(postPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			post := new(posts.Post)
			if err := post.Unmarshal(raw); err != nil {
				return err
			}

			res = append(res, post)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// PutPost implements the Store interface.
func (s *BadgerStore) PutPost(post *posts.Post) error {
	raw, err := post.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post.ID), raw)
	})
}

// GetMeta implements the Store interface.
func (s *BadgerStore) GetMeta(key string) ([]byte, error) {
	var raw []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "meta", key)
	}

	return raw, nil
}

// PutMeta implements the Store interface.
func (s *BadgerStore) PutMeta(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(key), value)
	})
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func mapError(err error, dataType, key string) error {
	if err == badger.ErrKeyNotFound {
		return cm.NewStoreErr(dataType, cm.KeyNotFound, key)
	}

	if err != nil && strings.Contains(err.Error(), "not found") {
		return cm.NewStoreErr(dataType, cm.KeyNotFound, key)
	}

	return err
}
