// Package dice produces the three-die rolls a round resolves with.
package dice

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Source yields uniform integers in [0, n).
type Source interface {
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a uniform random int in [0, n).
//
// Panics if n <= 0 or if crypto/rand fails; a roll has no failure mode to report.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// sequenceSource replays fixed faces. Used to script rolls.
type sequenceSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewSequenceSource returns a Source that yields faces-1 for each face in order,
// wrapping around at the end. Faces must be in [1,6].
func NewSequenceSource(faces ...int) Source {
	if len(faces) == 0 {
		panic("dice: NewSequenceSource needs at least one face")
	}
	return &sequenceSource{faces: faces}
}

func (s *sequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faces[s.next%len(s.faces)]
	s.next++
	return (f - 1) % n
}
