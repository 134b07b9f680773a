package record

import "sort"

// Ranked returns a copy of list ordered by the Int field rankField,
// highest first. Records missing the field rank as 0. The sort is stable so
// ties keep insertion order.
//
// Ranking is display-only: the canonical list order never changes.
func Ranked(list []Record, rankField string) []Record {
	out := CloneList(list)
	if rankField == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Fields.Int(rankField)
		b, _ := out[j].Fields.Int(rankField)
		return a > b
	})
	return out
}
