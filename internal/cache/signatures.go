package cache

import "sync"

// DefaultSignatureCapacity is the number of signatures remembered for dedup.
const DefaultSignatureCapacity = 500

// SignatureRing remembers recently processed transaction signatures.
type SignatureRing struct {
	mu   sync.Mutex
	ring *FIFO[string, struct{}]
}

// NewSignatureRing creates a ring remembering up to capacity signatures.
func NewSignatureRing(capacity int) *SignatureRing {
	return &SignatureRing{ring: NewFIFO[string, struct{}](capacity)}
}

// SeenBefore reports whether signature was already recorded. An unseen
// signature is recorded, evicting the oldest one when the ring is full.
// Empty signatures are never recorded and always report false.
func (s *SignatureRing) SeenBefore(signature string) bool {
	if signature == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring.Contains(signature) {
		return true
	}
	s.ring.Put(signature, struct{}{})
	return false
}

// Len returns the number of remembered signatures.
func (s *SignatureRing) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Len()
}
