package state

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	projects map[int]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[int]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, projectId int, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.projects[projectId][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, projectId int, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.projects[projectId] == nil {
		s.projects[projectId] = make(map[string]string)
	}
	s.projects[projectId][key] = value
	return nil
}
