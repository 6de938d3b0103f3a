package merkle

// Tree is a fully materialized tree built from an ordered leaf sequence.
// It exists to produce fixtures and reference proofs; production artifacts
// are built offline and only verified here.
type Tree struct {
	levels [][]Hash
}

// Build constructs a tree over the given leaf hashes, level by level.
// An odd trailing node is paired with itself.
func Build(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	levels := [][]Hash{level}

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPair(level[i], right))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

// Root returns the tree root, or the zero hash for an empty tree.
func (t *Tree) Root() Hash {
	if len(t.levels) == 0 {
		return Hash{}
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling sequence for leaf i, ordered from leaf to root.
// The returned slice is non-nil even for a single-leaf tree.
func (t *Tree) Proof(i int) []Hash {
	proof := make([]Hash, 0, len(t.levels))
	if len(t.levels) == 0 || i < 0 || i >= len(t.levels[0]) {
		return nil
	}
	idx := i
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}
		proof = append(proof, level[sibling])
		idx /= 2
	}
	return proof
}
