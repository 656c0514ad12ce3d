package mocks

import (
	"strconv"
	"sync"

	"github.com/mcoot/rostersync/internal/dependencies/ids"
)

// MockIDs returns queued ids, then "id-1", "id-2", ...
type MockIDs struct {
	mu     sync.Mutex
	queued []string
	next   int
	Err    error
}

var _ ids.Provider = (*MockIDs)(nil)

// NewMockIDs creates a MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next id
func (m *MockIDs) NewID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.queued) > 0 {
		id := m.queued[0]
		m.queued = m.queued[1:]
		return id, nil
	}
	m.next++
	return fmtCounter("id", m.next), nil
}

// Queue adds ids to be returned before the counter is used
func (m *MockIDs) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, values...)
}

func fmtCounter(prefix string, n int) string {
	return prefix + "-" + strconv.Itoa(n)
}
