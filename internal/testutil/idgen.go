package testutil

import "fmt"

// StubIDGenerator produces predictable sequential IDs: "<prefix>-1",
// "<prefix>-2", and so on.
type StubIDGenerator struct {
	Prefix string
	n      int
}

// NewStubIDGenerator creates a generator with the given prefix.
func NewStubIDGenerator(prefix string) *StubIDGenerator {
	return &StubIDGenerator{Prefix: prefix}
}

// New returns the next ID in the sequence.
func (g *StubIDGenerator) New() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.Prefix, g.n)
}
