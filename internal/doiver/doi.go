package doiver

// DOIGenerator mints persistent identifiers of the form <prefix>/<suffix>.
// The prefix is fixed per deployment (the registrant's DOI prefix); the
// suffix comes from the injected IDGenerator, which at web scale makes
// collisions negligible. If the store's uniqueness constraint ever fires
// anyway, that surfaces as a fatal configuration error — there is no retry.
type DOIGenerator struct {
	prefix string
	ids    IDGenerator
}

// NewDOIGenerator creates a generator for the given registrant prefix.
func NewDOIGenerator(prefix string, ids IDGenerator) *DOIGenerator {
	return &DOIGenerator{prefix: prefix, ids: ids}
}

// Mint returns a new persistent identifier.
func (g *DOIGenerator) Mint() string {
	return g.prefix + "/" + g.ids.New()
}
