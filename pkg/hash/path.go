package hash

// Path combines a parent's cumulative path hash with a node's own prompt
// hash into a new cumulative path hash.
//
// A root node (nil parent) keeps its prompt hash unchanged, so identical
// full histories from the root converge on the same path hash and a
// diverging input changes every path hash from that point on. With the path
// hash indexed this gives an O(1) "does this whole prefix exist" check.
func Path(parentPathHash *string, promptHash string) string {
	if parentPathHash == nil {
		return promptHash
	}

	return Text(*parentPathHash + ":" + promptHash)
}
