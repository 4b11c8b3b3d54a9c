package search

// Visited holds the fingerprints of the ancestors of a search node.
//
// A Visited value is never modified after it has been handed to a child:
// With returns a fresh copy, so sibling subtrees only ever see the shared
// path from the root and never each other's history.
type Visited map[Fingerprint]struct{}

// NewVisited returns a set seeded with the given fingerprints.
func NewVisited(fps ...Fingerprint) Visited {
	v := make(Visited, len(fps))
	for _, fp := range fps {
		v[fp] = struct{}{}
	}
	return v
}

func (v Visited) Contains(fp Fingerprint) bool {
	_, ok := v[fp]
	return ok
}

// With returns a copy of v that also contains fp.
func (v Visited) With(fp Fingerprint) Visited {
	out := make(Visited, len(v)+1)
	for k := range v {
		out[k] = struct{}{}
	}
	out[fp] = struct{}{}
	return out
}
