package swarm

// Sort keys are lowercase a-z strings ordered lexicographically. New keys
// are generated by string midpoint so any gap can be subdivided forever
// without renumbering neighbors. Generated keys never end in 'a' (the
// zero digit), which guarantees room below every existing key.

const (
	sortKeyLow  = 'a'
	sortKeyHigh = 'z'
)

// KeyBetween returns a key strictly between prev and next. An empty prev
// means "before everything"; an empty next means "after everything".
// prev must sort strictly below next when both are set.
func KeyBetween(prev, next string) string {
	var out []byte
	p, n := 0, 0
	for {
		var pd byte // virtual digit 0 when prev is exhausted
		if p < len(prev) {
			pd = prev[p] - sortKeyLow
			p++
		}
		nd := byte(26) // virtual digit past 'z' when next is exhausted
		if n < len(next) {
			nd = next[n] - sortKeyLow
			n++
		}
		if pd == nd {
			out = append(out, sortKeyLow+pd)
			continue
		}
		mid := (pd + nd) / 2
		if mid > pd {
			return string(append(out, sortKeyLow+mid))
		}
		// Adjacent digits: keep prev's digit and subdivide between the
		// rest of prev and the top of the range.
		out = append(out, sortKeyLow+pd)
		for {
			var rest byte
			if p < len(prev) {
				rest = prev[p] - sortKeyLow
				p++
			}
			if rest == sortKeyHigh-sortKeyLow {
				out = append(out, sortKeyHigh)
				continue
			}
			return string(append(out, sortKeyLow+(rest+26)/2))
		}
	}
}
