package form

import "sync"

// Toggle is a boolean the parent list watches; every flip asks it to reload.
type Toggle struct {
	mu    sync.Mutex
	value bool
	flips int
}

// Flip inverts the value and returns the new one.
func (t *Toggle) Flip() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.value = !t.value
	t.flips++
	return t.value
}

// Value returns the current value.
func (t *Toggle) Value() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Flips returns how many times the toggle has been flipped.
func (t *Toggle) Flips() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flips
}
