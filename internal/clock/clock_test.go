// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock := NewMock(start)
	SetSource(mock)
	defer SetSource(nil)

	assert.Equal(t, start, Now())
	mock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), Now())
}

func TestRealClockRestored(t *testing.T) {
	mock := NewMock(time.Unix(0, 0))
	SetSource(mock)
	SetSource(nil)

	assert.WithinDuration(t, time.Now(), Now(), time.Second)
}
