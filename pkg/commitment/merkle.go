package commitment

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLeaves is returned when a tree is built over zero leaves.
	ErrNoLeaves = errors.New("merkle tree requires at least one leaf")
	// ErrLeafIndex is returned when a path is requested for a leaf that does not exist.
	ErrLeafIndex = errors.New("leaf index out of range")
)

// Side tells a verifier on which side of the running hash a sibling sits.
type Side uint8

const (
	// SideRight means the sibling is the right operand: hash(current, sibling).
	SideRight Side = iota
	// SideLeft means the sibling is the left operand: hash(sibling, current).
	SideLeft
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// MarshalText encodes the side as "left" or "right".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "left" or "right".
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	default:
		return fmt.Errorf("invalid path side %q", string(text))
	}
	return nil
}

// Step is one level of an inclusion path.
type Step struct {
	Sibling Digest `json:"sibling"`
	Side    Side   `json:"side"`
}

// Tree is a binary Merkle tree built bottom-up over an ordered leaf sequence.
// When a level has an odd number of nodes the last node is paired with itself.
type Tree struct {
	levels [][]Digest
}

// NewTree builds a tree over leaves. The input slice is copied.
func NewTree(leaves []Digest) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	level := make([]Digest, len(leaves))
	copy(level, leaves)
	levels := [][]Digest{level}

	for len(level) > 1 {
		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPair(left, right))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// Root returns the single digest at the top of the tree.
func (t *Tree) Root() Digest {
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Leaf returns the leaf digest at index.
func (t *Tree) Leaf(index int) (Digest, error) {
	if index < 0 || index >= t.LeafCount() {
		return Digest{}, fmt.Errorf("%w: %d of %d", ErrLeafIndex, index, t.LeafCount())
	}
	return t.levels[0][index], nil
}

// Depth returns the number of steps in every inclusion path.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Path returns the sibling digests from leaf index up to the root.
// A single-leaf tree has an empty path; the leaf is the root.
func (t *Tree) Path(index int) ([]Step, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, fmt.Errorf("%w: %d of %d", ErrLeafIndex, index, t.LeafCount())
	}

	path := make([]Step, 0, t.Depth())
	pos := index
	for _, level := range t.levels[:len(t.levels)-1] {
		var step Step
		if pos%2 == 1 {
			step = Step{Sibling: level[pos-1], Side: SideLeft}
		} else if pos+1 < len(level) {
			step = Step{Sibling: level[pos+1], Side: SideRight}
		} else {
			// odd tail: paired with its own duplicate
			step = Step{Sibling: level[pos], Side: SideRight}
		}
		path = append(path, step)
		pos /= 2
	}
	return path, nil
}

// RootFromPath folds a leaf up through its inclusion path.
func RootFromPath(leaf Digest, path []Step) Digest {
	current := leaf
	for _, step := range path {
		if step.Side == SideLeft {
			current = HashPair(step.Sibling, current)
		} else {
			current = HashPair(current, step.Sibling)
		}
	}
	return current
}

// VerifyPath reports whether leaf and path recompute root exactly.
func VerifyPath(leaf Digest, path []Step, root Digest) bool {
	return RootFromPath(leaf, path) == root
}
