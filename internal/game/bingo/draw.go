package bingo

// CalledSet builds the set form of a called-number sequence.
func CalledSet(sequence []int) map[int]struct{} {
	set := make(map[int]struct{}, len(sequence))
	for _, n := range sequence {
		set[n] = struct{}{}
	}
	return set
}

// Remaining returns the numbers of the universe not yet in called, ascending.
func Remaining(called map[int]struct{}) []int {
	remaining := make([]int, 0, UniverseSize)
	for n := MinNumber; n <= MaxNumber; n++ {
		if _, ok := called[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	return remaining
}

// NextNumber draws uniformly from the numbers not yet called. The complement
// is recomputed on every call so the caller's set is the only source of
// truth. ok is false once the pool is exhausted.
func NextNumber(called map[int]struct{}, r Rand) (n int, ok bool) {
	if r == nil {
		r = DefaultRand
	}
	remaining := Remaining(called)
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[r.Intn(len(remaining))], true
}

// Exhausted reports whether every number has been called.
func Exhausted(called map[int]struct{}) bool {
	return len(Remaining(called)) == 0
}
