// Package bingo implements the rules of a Bingo round: cards, the draw pool
// and the win pattern check. Everything in this package is pure; callers own
// the state and the random source.
//
// The number universe is a flat 1..25 range. Cards are a single shuffle of the
// universe, so generation and validation always agree.
package bingo

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const (
	// Size is the width and height of a card.
	Size = 5
	// MinNumber is the smallest callable number.
	MinNumber = 1
	// MaxNumber is the largest callable number.
	MaxNumber = 25
	// UniverseSize is the count of callable numbers.
	UniverseSize = MaxNumber - MinNumber + 1
	// MaxSavedCards is how many custom cards a user may keep.
	MaxSavedCards = 3
)

// ErrInvalidCard is returned when a submitted card fails validation.
var ErrInvalidCard = errors.New("invalid card")

// Rand is the random source used to deal cards and draw numbers.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) Intn(n int) int                     { return rand.Intn(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultRand uses the auto-seeded math/rand top-level source.
var DefaultRand Rand = globalRand{}

// Card is a player's 5x5 grid of numbers.
type Card [Size][Size]int

// Mask tracks which cells of a card are marked.
type Mask [Size][Size]bool

// GenerateCard deals a card by shuffling the whole universe into the grid.
func GenerateCard(r Rand) Card {
	if r == nil {
		r = DefaultRand
	}

	numbers := make([]int, UniverseSize)
	for i := range numbers {
		numbers[i] = MinNumber + i
	}
	r.Shuffle(len(numbers), func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})

	var card Card
	for i, n := range numbers {
		card[i/Size][i%Size] = n
	}
	return card
}

// InUniverse reports whether n is a callable number.
func InUniverse(n int) bool {
	return n >= MinNumber && n <= MaxNumber
}

// ValidateRows checks an externally supplied grid: exactly 5 rows of exactly
// 5 cells, all values distinct and inside the universe. It never panics.
func ValidateRows(rows [][]int) bool {
	if len(rows) != Size {
		return false
	}
	seen := make(map[int]struct{}, Size*Size)
	for _, row := range rows {
		if len(row) != Size {
			return false
		}
		for _, n := range row {
			if !InUniverse(n) {
				return false
			}
			if _, dup := seen[n]; dup {
				return false
			}
			seen[n] = struct{}{}
		}
	}
	return true
}

// Valid reports whether the card satisfies the same rules as ValidateRows.
func (c Card) Valid() bool {
	return ValidateRows(c.Rows())
}

// Rows returns the card as a slice of rows.
func (c Card) Rows() [][]int {
	rows := make([][]int, Size)
	for i := range c {
		rows[i] = append([]int(nil), c[i][:]...)
	}
	return rows
}

// CardFromRows converts and validates a grid.
func CardFromRows(rows [][]int) (Card, error) {
	var card Card
	if !ValidateRows(rows) {
		return card, ErrInvalidCard
	}
	for i, row := range rows {
		copy(card[i][:], row)
	}
	return card, nil
}

// ParseCard reads 25 numbers in row-major order separated by spaces,
// commas or newlines.
func ParseCard(text string) (Card, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t' || r == ';'
	})
	if len(fields) != Size*Size {
		return Card{}, fmt.Errorf("%w: expected %d numbers, got %d", ErrInvalidCard, Size*Size, len(fields))
	}

	rows := make([][]int, Size)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Card{}, fmt.Errorf("%w: %q is not a number", ErrInvalidCard, f)
		}
		rows[i/Size] = append(rows[i/Size], n)
	}
	return CardFromRows(rows)
}

// Find locates n on the card.
func (c Card) Find(n int) (row, col int, ok bool) {
	for i := range c {
		for j := range c[i] {
			if c[i][j] == n {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// String renders the card as five lines of right-aligned numbers.
func (c Card) String() string {
	var b strings.Builder
	for r := range c {
		for col := range c[r] {
			if col > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%2d", c[r][col])
		}
		if r < Size-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Marked reports whether the cell holding n is marked.
func (m Mask) Marked(c Card, n int) bool {
	r, col, ok := c.Find(n)
	return ok && m[r][col]
}

// Count returns the number of marked cells.
func (m Mask) Count() int {
	count := 0
	for r := range m {
		for c := range m[r] {
			if m[r][c] {
				count++
			}
		}
	}
	return count
}
