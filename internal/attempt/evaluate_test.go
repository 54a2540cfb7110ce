package attempt

import (
	"reflect"
	"testing"
)

func TestNormalizeOptionIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{name: "nil input", in: nil, want: []int64{}},
		{name: "sorted unique", in: []int64{3, 1, 2}, want: []int64{1, 2, 3}},
		{name: "duplicates collapse", in: []int64{2, 2, 2, 1}, want: []int64{1, 2}},
		{name: "non-positive dropped", in: []int64{0, -4, 5}, want: []int64{5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeOptionIDs(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEvaluateSelection(t *testing.T) {
	tests := []struct {
		name     string
		key      []int64
		selected []int64
		want     bool
	}{
		{name: "single correct", key: []int64{1}, selected: []int64{1}, want: true},
		{name: "single wrong", key: []int64{1}, selected: []int64{2}, want: false},
		{name: "multi correct any order", key: []int64{1, 3}, selected: []int64{3, 1}, want: true},
		{name: "multi missing one", key: []int64{1, 3}, selected: []int64{1}, want: false},
		{name: "multi extra one", key: []int64{1, 3}, selected: []int64{1, 2, 3}, want: false},
		{name: "multi duplicate selection collapses", key: []int64{1, 3}, selected: []int64{1, 3, 3}, want: true},
		{name: "empty selection against real key", key: []int64{1}, selected: nil, want: false},
		{name: "empty selection against empty key", key: nil, selected: nil, want: true},
		{name: "selection against empty key", key: nil, selected: []int64{1}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := evaluateSelection(tc.key, tc.selected); got != tc.want {
				t.Fatalf("evaluateSelection(%v, %v) = %v, want %v", tc.key, tc.selected, got, tc.want)
			}
		})
	}
}
