package volume

import "sort"

// blockKey identifies a block by its integer block coordinate.
type blockKey struct {
	BX, BY, BZ int32
}

func lessBlockKey(a, b blockKey) bool {
	if a.BX != b.BX {
		return a.BX < b.BX
	}
	if a.BY != b.BY {
		return a.BY < b.BY
	}
	return a.BZ < b.BZ
}

// sortedKeys returns the keys of m in deterministic lexicographic block-
// coordinate order, matching the ordered-map semantics spec.md requires
// of the block index.
func sortedKeys[T any](m map[blockKey]T) []blockKey {
	keys := make([]blockKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessBlockKey(keys[i], keys[j]) })
	return keys
}

func regionOfBlock(k blockKey, blockSide uint16) Region {
	shift := int32(blockSide)
	lower := [3]int32{k.BX * shift, k.BY * shift, k.BZ * shift}
	upper := [3]int32{lower[0] + shift - 1, lower[1] + shift - 1, lower[2] + shift - 1}
	return NewRegion(lower, upper)
}
