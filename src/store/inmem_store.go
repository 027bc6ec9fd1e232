package store

import (
	"sync"

	cm "github.com/fractalnet/fractal/src/common"
	"github.com/fractalnet/fractal/src/posts"
)

// InmemStore implements the Store interface with in-memory maps. It is used
// in tests and when the node is run without persistence.
type InmemStore struct {
	sync.RWMutex
	posts map[string]*posts.Post
	meta  map[string][]byte
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		posts: make(map[string]*posts.Post),
		meta:  make(map[string][]byte),
	}
}

// GetPost implements the Store interface.
func (s *InmemStore) GetPost(id string) (*posts.Post, error) {
	s.RLock()
	defer s.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, cm.NewStoreErr("post", cm.KeyNotFound, id)
	}

	return post.Clone(), nil
}

// AllPosts implements the Store interface.
func (s *InmemStore) AllPosts() ([]*posts.Post, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*posts.Post, 0, len(s.posts))
	for _, p := range s.posts {
		res = append(res, p.Clone())
	}

	return res, nil
}

// PutPost implements the Store interface.
func (s *InmemStore) PutPost(post *posts.Post) error {
	s.Lock()
	defer s.Unlock()

	s.posts[post.ID] = post.Clone()

	return nil
}

// GetMeta implements the Store interface.
func (s *InmemStore) GetMeta(key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	value, ok := s.meta[key]
	if !ok {
		return nil, cm.NewStoreErr("meta", cm.KeyNotFound, key)
	}

	return append([]byte{}, value...), nil
}

// PutMeta implements the Store interface.
func (s *InmemStore) PutMeta(key string, value []byte) error {
	s.Lock()
	defer s.Unlock()

	s.meta[key] = append([]byte{}, value...)

	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
