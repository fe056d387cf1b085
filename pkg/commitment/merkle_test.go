package commitment

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(n int) []Digest {
	out := make([]Digest, n)
	for i := range out {
		out[i] = HashField(fmt.Sprintf("credential-%d", i))
	}
	return out
}

func TestHashField_Deterministic(t *testing.T) {
	assert.Equal(t, HashField("3.8"), HashField("3.8"))
	assert.NotEqual(t, HashField("3.8"), HashField("3.80"))

	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashField("abc").Hex())
}

func TestParseDigest(t *testing.T) {
	d := HashField("aws")

	parsed, err := ParseDigest(d.Hex())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	parsed, err = ParseDigest("0x" + d.Hex())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDigest("abcd")
	assert.Error(t, err)

	_, err = ParseDigest(string(make([]byte, 64)))
	assert.Error(t, err)
}

func TestNewTree_RejectsEmpty(t *testing.T) {
	_, err := NewTree(nil)
	assert.ErrorIs(t, err, ErrNoLeaves)
}

func TestTree_SingleLeafIsRoot(t *testing.T) {
	l := leaves(1)
	tree, err := NewTree(l)
	require.NoError(t, err)

	assert.Equal(t, l[0], tree.Root())
	path, err := tree.Path(0)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.True(t, VerifyPath(l[0], path, tree.Root()))
}

func TestTree_TwoLeavesKnownRoot(t *testing.T) {
	l := leaves(2)
	tree, err := NewTree(l)
	require.NoError(t, err)

	assert.Equal(t, HashPair(l[0], l[1]), tree.Root())

	path, err := tree.Path(1)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, SideLeft, path[0].Side)
	assert.Equal(t, l[0], path[0].Sibling)
}

func TestTree_OddLeafDuplicatesLast(t *testing.T) {
	l := leaves(3)
	tree, err := NewTree(l)
	require.NoError(t, err)

	expected := HashPair(HashPair(l[0], l[1]), HashPair(l[2], l[2]))
	assert.Equal(t, expected, tree.Root())

	path, err := tree.Path(2)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, l[2], path[0].Sibling, "odd tail pairs with itself")
	assert.Equal(t, SideRight, path[0].Side)
	assert.True(t, VerifyPath(l[2], path, tree.Root()))
}

func TestTree_RootPathConsistency(t *testing.T) {
	for n := 1; n <= 33; n++ {
		l := leaves(n)
		tree, err := NewTree(l)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			path, err := tree.Path(i)
			require.NoError(t, err)
			assert.Len(t, path, tree.Depth())
			assert.Truef(t, VerifyPath(l[i], path, tree.Root()), "n=%d i=%d", n, i)
		}
	}
}

func TestTree_PathRejectsTampering(t *testing.T) {
	l := leaves(5)
	tree, err := NewTree(l)
	require.NoError(t, err)

	path, err := tree.Path(3)
	require.NoError(t, err)

	assert.False(t, VerifyPath(l[2], path, tree.Root()), "wrong leaf")

	flipped := append([]Step(nil), path...)
	if flipped[0].Side == SideLeft {
		flipped[0].Side = SideRight
	} else {
		flipped[0].Side = SideLeft
	}
	assert.False(t, VerifyPath(l[3], flipped, tree.Root()), "wrong side")
}

func TestTree_PathIndexOutOfRange(t *testing.T) {
	tree, err := NewTree(leaves(4))
	require.NoError(t, err)

	_, err = tree.Path(4)
	assert.ErrorIs(t, err, ErrLeafIndex)
	_, err = tree.Path(-1)
	assert.ErrorIs(t, err, ErrLeafIndex)
}

func TestTree_InputNotAliased(t *testing.T) {
	l := leaves(2)
	tree, err := NewTree(l)
	require.NoError(t, err)
	root := tree.Root()

	l[0] = HashField("mutated")
	leaf, err := tree.Leaf(0)
	require.NoError(t, err)
	assert.NotEqual(t, l[0], leaf)
	assert.Equal(t, root, tree.Root())
}

func TestStep_JSON(t *testing.T) {
	step := Step{Sibling: HashField("x"), Side: SideLeft}
	raw, err := json.Marshal(step)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sibling":"`+HashField("x").Hex()+`","side":"left"}`, string(raw))

	var decoded Step
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, step, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"sibling":"`+HashField("x").Hex()+`","side":"up"}`), &decoded))
}

func TestLeafHash(t *testing.T) {
	fields := []Field{
		{Name: "gpa", Value: "3.8", Hashable: true},
		{Name: "notes", Value: "great student", Hashable: false},
		{Name: "cert", Value: "aws", Hashable: true},
	}

	want := HashConcat(HashField("3.8"), HashField("aws"))
	assert.Equal(t, want, LeafHash(fields))

	t.Run("non-hashable fields do not contribute", func(t *testing.T) {
		changed := append([]Field(nil), fields...)
		changed[1].Value = "different notes"
		assert.Equal(t, LeafHash(fields), LeafHash(changed))
	})

	t.Run("field order matters", func(t *testing.T) {
		swapped := []Field{fields[2], fields[1], fields[0]}
		assert.NotEqual(t, LeafHash(fields), LeafHash(swapped))
	})

	t.Run("identical hashable values share a leaf", func(t *testing.T) {
		other := []Field{{Name: "grade", Value: "3.8", Hashable: true}, {Name: "c", Value: "aws", Hashable: true}}
		assert.Equal(t, LeafHash(fields), LeafHash(other))
	})
}
