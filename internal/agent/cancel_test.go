package agent

import "testing"

func TestCancelTokenLatches(t *testing.T) {
	token := NewCancelToken()
	if token.Cancelled() {
		t.Error("fresh token already cancelled")
	}
	token.Cancel()
	if !token.Cancelled() {
		t.Error("token not cancelled after Cancel")
	}
	// Cancel is idempotent and the token never resets.
	token.Cancel()
	if !token.Cancelled() {
		t.Error("token reset after second Cancel")
	}
}

func TestCancelTokenNilSafe(t *testing.T) {
	var token *CancelToken
	token.Cancel()
	if token.Cancelled() {
		t.Error("nil token reports cancelled")
	}
}
