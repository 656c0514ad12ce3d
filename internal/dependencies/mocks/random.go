package mocks

import (
	"sync"

	"github.com/mcoot/rostersync/internal/dependencies/random"
)

// MockRandom returns queued values, falling back to a deterministic counter
// so repeated slugs stay unique when nothing is queued
type MockRandom struct {
	mu            sync.Mutex
	stringResults []string
	calls         int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn always returns 0
func (r *MockRandom) Intn(n int) int {
	return 0
}

// String returns the next queued result, or a generated one if none remain
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.stringResults) > 0 {
		result := r.stringResults[0]
		r.stringResults = r.stringResults[1:]
		return result
	}
	return fmtCounter("r", r.calls)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}
