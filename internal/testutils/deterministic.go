// Package testutils provides deterministic generators and mock
// collaborators for braid testing. These utilities keep test output
// stable while preserving production format compatibility.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	idCounter uint64
	idMutex   sync.Mutex

	timeCounter int64
	timeMutex   sync.Mutex
)

// GenerateUUID generates a UUID that is deterministic in test mode but
// random in production. Deterministic UUIDs keep the v4 format:
// 00000001-0000-4000-8000-000000000001, 00000002-..., etc.
func GenerateUUID(testMode bool) string {
	if testMode {
		return deterministicUUID()
	}
	return uuid.New().String()
}

// Now returns the current time, deterministic and strictly increasing
// in test mode (1-second steps from 2025-01-01T00:00:00Z), real time in
// production.
func Now(testMode bool) time.Time {
	if testMode {
		return deterministicTime()
	}
	return time.Now()
}

// ResetCounters rewinds the deterministic generators. Call at the start
// of a test that asserts on generated IDs or timestamps.
func ResetCounters() {
	idMutex.Lock()
	idCounter = 0
	idMutex.Unlock()

	timeMutex.Lock()
	timeCounter = 0
	timeMutex.Unlock()
}

func deterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

func deterministicTime() time.Time {
	timeMutex.Lock()
	defer timeMutex.Unlock()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t := base.Add(time.Duration(timeCounter) * time.Second)
	timeCounter++
	return t
}
