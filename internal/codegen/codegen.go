// Package codegen produces the opaque access codes printed on room QR cards.
package codegen

import (
	"crypto/rand"
	"fmt"
)

// Alphabet deliberately excludes 0/O and 1/I so a code read aloud or typed
// from a printout cannot be misread.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length of every issued code. 32 symbols at length 8 gives a space above
// 10^12, so collisions across a few hundred rooms are a regenerate-once
// rarity, not something to loop over.
const Length = 8

// Generate draws one candidate code. Uniqueness is the registry's job, not
// ours.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// len(Alphabet) divides 256, so the modulo stays uniform.
	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}
