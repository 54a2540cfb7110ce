package attempt

import "sort"

// normalizeOptionIDs collapses a client-supplied option id list into a
// sorted set: duplicates dropped, non-positive ids dropped, order ignored.
func normalizeOptionIDs(ids []int64) []int64 {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// evaluateSelection reports whether the submitted set matches the answer
// key exactly: same size, same members. One rule for every question type;
// a multi-select answer with a missing or extra option is wrong, with no
// partial credit. An empty submission can only match an empty key, which a
// well-formed question never has.
func evaluateSelection(key, selected []int64) bool {
	kk := normalizeOptionIDs(key)
	ss := normalizeOptionIDs(selected)
	if len(kk) != len(ss) {
		return false
	}
	for i := range kk {
		if kk[i] != ss[i] {
			return false
		}
	}
	return true
}
