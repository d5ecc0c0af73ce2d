package inmemblob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

var ErrNotFound = errors.New("object not found")

type object struct {
	content     []byte
	contentType string
}

// Storage keeps the documents in memory (dev & tests).
type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ core.BlobStorage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{objects: make(map[string]object)}
}

func (s *Storage) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{content: content, contentType: contentType}
	return nil
}

func (s *Storage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (s *Storage) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[srcKey]
	if !ok {
		return ErrNotFound
	}
	s.objects[dstKey] = obj
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Storage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Keys returns the stored keys.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
