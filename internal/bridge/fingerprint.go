package bridge

// fingerprintPrefix is how many leading bytes take part in a Fingerprint.
const fingerprintPrefix = 256

// Fingerprint identifies a payload for duplicate suppression only: its length
// and first 256 bytes. Payloads that agree on both are treated as the same
// even if their tails differ.
type Fingerprint struct {
	Len    int
	Prefix string
	valid  bool
}

// FingerprintOf returns the fingerprint of p.
func FingerprintOf(p []byte) Fingerprint {
	n := min(len(p), fingerprintPrefix)
	return Fingerprint{Len: len(p), Prefix: string(p[:n]), valid: true}
}

// IsZero reports whether f was never set. The zero Fingerprint does not match
// any payload, the empty one included.
func (f Fingerprint) IsZero() bool { return !f.valid }

// syncState is owned by the loop goroutine.
type syncState struct {
	lastSeenFromPeer Fingerprint
	lastSentToPeer   Fingerprint
}

// seen reports whether fp was the last payload moved in either direction.
func (s *syncState) seen(fp Fingerprint) bool {
	return fp == s.lastSeenFromPeer || fp == s.lastSentToPeer
}
