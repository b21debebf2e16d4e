package service

import "sync"

// ProjectLocks hands out one advisory mutex per project ID. Dependency
// mutations and cascade applies against the same project serialize on it;
// read-only calculation never takes it. One instance is shared by every
// service touching a given database.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *ProjectLocks) get(projectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	return m
}
