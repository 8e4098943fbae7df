package fiber

import "sync"

type tokenState int

const (
	tokenPending tokenState = iota
	tokenResumed
)

// token pairs one park with one resume. The payload is written once by
// the first resume; later resumes are rejected.
type token struct {
	mu     sync.Mutex
	state  tokenState
	value  any
	err    error
	waiter *Fiber
}

// resume stores the payload and returns the fiber parked on t, if any.
// ok is false when t was already resumed.
func (t *token) resume(v any, err error) (waiter *Fiber, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == tokenResumed {
		return nil, false
	}
	t.state = tokenResumed
	t.value, t.err = v, err
	waiter, t.waiter = t.waiter, nil
	return waiter, true
}

// arm registers f as the waiter and reports whether f has to park.
func (t *token) arm(f *Fiber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == tokenResumed {
		return false
	}
	t.waiter = f
	return true
}

func (t *token) payload() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err
}
