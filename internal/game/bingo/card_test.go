package bingo

import (
	"errors"
	"math/rand"
	"testing"

	"pgregory.net/rapid"
)

func seededRand(t *rapid.T) *rand.Rand {
	seed := rapid.Int64().Draw(t, "seed")
	return rand.New(rand.NewSource(seed))
}

// TestGeneratedCardValidProperty checks that every generated card has 25
// distinct cells inside the universe.
func TestGeneratedCardValidProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		card := GenerateCard(seededRand(t))

		seen := make(map[int]bool)
		for r := 0; r < Size; r++ {
			for c := 0; c < Size; c++ {
				n := card[r][c]
				if !InUniverse(n) {
					t.Fatalf("cell (%d,%d)=%d outside universe", r, c, n)
				}
				if seen[n] {
					t.Fatalf("duplicate value %d on card\n%s", n, card)
				}
				seen[n] = true
			}
		}
		if len(seen) != Size*Size {
			t.Fatalf("expected %d cells, got %d", Size*Size, len(seen))
		}
		if !card.Valid() {
			t.Fatalf("validator rejected generated card\n%s", card)
		}
	})
}

// TestValidateRowsRejectsDuplicateProperty checks that copying any cell over
// another makes the card invalid.
func TestValidateRowsRejectsDuplicateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := GenerateCard(seededRand(t)).Rows()
		src := rapid.IntRange(0, Size*Size-1).Draw(t, "src")
		dst := rapid.IntRange(0, Size*Size-1).Filter(func(i int) bool { return i != src }).Draw(t, "dst")

		rows[dst/Size][dst%Size] = rows[src/Size][src%Size]

		if ValidateRows(rows) {
			t.Fatalf("card with duplicate accepted: %v", rows)
		}
	})
}

func TestValidateRows(t *testing.T) {
	valid := [][]int{
		{1, 2, 3, 4, 5},
		{6, 7, 8, 9, 10},
		{11, 12, 13, 14, 15},
		{16, 17, 18, 19, 20},
		{21, 22, 23, 24, 25},
	}

	tests := []struct {
		name     string
		rows     [][]int
		expected bool
	}{
		{"valid", valid, true},
		{"nil", nil, false},
		{"four rows", valid[:4], false},
		{"short row", [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12, 13, 14}, {16, 17, 18, 19, 20}, {21, 22, 23, 24, 25}}, false},
		{"zero", [][]int{{0, 2, 3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12, 13, 14, 15}, {16, 17, 18, 19, 20}, {21, 22, 23, 24, 25}}, false},
		{"above range", [][]int{{26, 2, 3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12, 13, 14, 15}, {16, 17, 18, 19, 20}, {21, 22, 23, 24, 25}}, false},
		{"duplicate", [][]int{{1, 1, 3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12, 13, 14, 15}, {16, 17, 18, 19, 20}, {21, 22, 23, 24, 25}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRows(tt.rows); got != tt.expected {
				t.Errorf("ValidateRows() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseCard(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"spaces", "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25", false},
		{"commas and lines", "25,24,23,22,21\n20,19,18,17,16\n15,14,13,12,11\n10,9,8,7,6\n5,4,3,2,1", false},
		{"too few", "1 2 3", true},
		{"not a number", "x 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25", true},
		{"duplicate", "1 1 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := ParseCard(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCard) {
					t.Fatalf("expected ErrInvalidCard, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !card.Valid() {
				t.Fatalf("parsed card is not valid\n%s", card)
			}
		})
	}
}

func TestCardFind(t *testing.T) {
	card, err := ParseCard("1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25")
	if err != nil {
		t.Fatal(err)
	}

	r, c, ok := card.Find(13)
	if !ok || r != 2 || c != 2 {
		t.Errorf("Find(13) = (%d, %d, %v), want (2, 2, true)", r, c, ok)
	}
	if _, _, ok := card.Find(26); ok {
		t.Errorf("Find(26) should not be found")
	}
}
