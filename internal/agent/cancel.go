package agent

import "sync/atomic"

// CancelToken is a shared one-way flag for cooperative cancellation.
// It is observed at defined checkpoints (top of a loop iteration,
// before pulling the next tool stream item) rather than preemptively;
// an in-flight network call or blocking executor is never interrupted.
// Once cancelled the token never resets.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns an uncancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel trips the token. Safe to call from any goroutine, any number
// of times.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.flag.Store(true)
}

// Cancelled reports whether the token has been tripped. A nil token
// reads as not cancelled.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}
