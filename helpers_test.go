package fiber

import (
	"sync"
	"testing"
	"time"
)

const testTimeout = 2 * time.Second

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l := NewLoop(append([]LoopOption{WithName(t.Name())}, opts...)...)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func waitDone(t *testing.T, s *Scope) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("scope did not finish")
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for value")
		panic("unreachable")
	}
}

func fakeAsyncDouble(n int, cb func(int, error)) {
	time.AfterFunc(time.Millisecond, func() {
		cb(n*2, nil)
	})
}

// countingMetrics records calls for assertions.
type countingMetrics struct {
	mu      sync.Mutex
	created int
	errors  map[ErrorKind]int
	waits   int
	doubles int
	live    []int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[ErrorKind]int)}
}

func (m *countingMetrics) RecordScopeCreated(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) RecordScopeError(_ string, kind ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordWait(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
}

func (m *countingMetrics) RecordDoubleResume(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doubles++
}

func (m *countingMetrics) RecordLiveFibers(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = append(m.live, n)
}

func (m *countingMetrics) scopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *countingMetrics) errorCount(kind ErrorKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *countingMetrics) waitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waits
}

func (m *countingMetrics) doubleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doubles
}
