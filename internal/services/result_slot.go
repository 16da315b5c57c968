package services

import "sync"

// ResultSlot holds the most recent successful submission. Completions are
// accepted only when their sequence is newer than the stored one, so a slow
// earlier request can never overwrite a later result. Failures are never
// offered and therefore never clear what is shown.
type ResultSlot struct {
	mu    sync.Mutex
	value Submission
	set   bool
}

// Offer stores sub if it is newer than the current value and reports whether it was kept.
func (s *ResultSlot) Offer(sub Submission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && sub.Sequence <= s.value.Sequence {
		return false
	}
	s.value = sub
	s.set = true
	return true
}

// Load returns the stored submission, if any.
func (s *ResultSlot) Load() (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}
