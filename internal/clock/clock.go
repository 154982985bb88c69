// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock provides the process-wide time source. Production code
// calls clock.Now; tests swap in a MockClock to drive linger deadlines
// and cloud windows deterministically.
package clock

import (
	"sync"
	"time"
)

// Source supplies the current time.
type Source interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var (
	mu     sync.RWMutex
	source Source = realClock{}
)

// Now returns the current time from the active source.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return source.Now()
}

// SetSource replaces the active time source. Passing nil restores the
// real clock.
func SetSource(s Source) {
	mu.Lock()
	defer mu.Unlock()
	if s == nil {
		source = realClock{}
		return
	}
	source = s
}

// MockClock is a manually advanced time source for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a MockClock starting at the given time.
func NewMock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
