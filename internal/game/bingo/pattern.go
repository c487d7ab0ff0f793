package bingo

// HasBingo reports whether any row, any column, the main diagonal or the
// anti-diagonal is fully marked.
func HasBingo(m Mask) bool {
	return CompletedLines(m) > 0
}

// CompletedLines counts fully marked rows, columns and diagonals.
func CompletedLines(m Mask) int {
	lines := 0

	for r := 0; r < Size; r++ {
		full := true
		for c := 0; c < Size; c++ {
			if !m[r][c] {
				full = false
				break
			}
		}
		if full {
			lines++
		}
	}

	for c := 0; c < Size; c++ {
		full := true
		for r := 0; r < Size; r++ {
			if !m[r][c] {
				full = false
				break
			}
		}
		if full {
			lines++
		}
	}

	diag, anti := true, true
	for i := 0; i < Size; i++ {
		diag = diag && m[i][i]
		anti = anti && m[i][Size-1-i]
	}
	if diag {
		lines++
	}
	if anti {
		lines++
	}

	return lines
}

// MaskFor returns the mask a player would have after marking every called
// number present on the card.
func MaskFor(c Card, called map[int]struct{}) Mask {
	var m Mask
	for r := range c {
		for col := range c[r] {
			if _, ok := called[c[r][col]]; ok {
				m[r][col] = true
			}
		}
	}
	return m
}
