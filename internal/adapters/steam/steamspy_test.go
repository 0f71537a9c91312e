package steam

import "testing"

func TestParseOwnersRange(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"1,000,000 .. 2,000,000", 1500000},
		{"0 .. 20,000", 10000},
		{"500000", 500000},
		{"", 0},
		{"мусор", 0},
	}
	for _, tc := range cases {
		if got := parseOwnersRange(tc.raw); got != tc.want {
			t.Fatalf("%q: ожидали %d, получили %d", tc.raw, tc.want, got)
		}
	}
}
