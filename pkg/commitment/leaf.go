package commitment

// Field is one named credential value. Non-hashable fields travel with the
// credential but do not contribute to its leaf.
type Field struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Hashable bool   `json:"hashable"`
}

// LeafHash is the hash of the ordered concatenation of HashField(value) for
// every hashable field, in declaration order. Credentials with identical
// hashable values in the same order share a leaf.
func LeafHash(fields []Field) Digest {
	digests := make([]Digest, 0, len(fields))
	for _, f := range fields {
		if f.Hashable {
			digests = append(digests, HashField(f.Value))
		}
	}
	return HashConcat(digests...)
}
