package attempt

import "testing"

func TestScorePercent(t *testing.T) {
	tests := []struct {
		name     string
		correct  int
		answered int
		want     float64
	}{
		{name: "three of four", correct: 3, answered: 4, want: 75.00},
		{name: "one of two", correct: 1, answered: 2, want: 50.00},
		{name: "all correct", correct: 5, answered: 5, want: 100.00},
		{name: "none correct", correct: 0, answered: 3, want: 0},
		{name: "nothing answered", correct: 0, answered: 0, want: 0},
		{name: "one of three rounds to two decimals", correct: 1, answered: 3, want: 33.33},
		{name: "two of three rounds up", correct: 2, answered: 3, want: 66.67},
		{name: "one of seven", correct: 1, answered: 7, want: 14.29},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := scorePercent(tc.correct, tc.answered); got != tc.want {
				t.Fatalf("scorePercent(%d, %d) = %v, want %v", tc.correct, tc.answered, got, tc.want)
			}
		})
	}
}
