package store

import "testing"

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points int64
		want   int
	}{
		{0, 0},
		{99, 0},
		{100, 1},
		{399, 1},
		{400, 2},
		{10000, 10},
		{10200, 10},
	}

	for _, tt := range tests {
		if got := LevelForPoints(tt.points); got != tt.want {
			t.Errorf("LevelForPoints(%d) = %d, want %d", tt.points, got, tt.want)
		}
	}
}
