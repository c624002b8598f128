package signals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wardenhq/warden/internal/guard/signals"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s1   string
		s2   string
		want float64
	}{
		{
			name: "identical strings",
			s1:   "raider",
			s2:   "raider",
			want: 1.0,
		},
		{
			name: "empty string",
			s1:   "",
			s2:   "raider",
			want: 0.0,
		},
		{
			name: "single trailing digit differs",
			s1:   "user1234",
			s2:   "user1235",
			want: 0.875,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, signals.Similarity(tt.s1, tt.s2), 0.001)
		})
	}
}

func TestSimilarityAboveClusterFloor(t *testing.T) {
	t.Parallel()

	// Sequentially numbered raid accounts must cluster together
	assert.Greater(t, signals.Similarity("user1234", "user1235"), 0.6)
}

func TestEditDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s1   string
		s2   string
		want int
	}{
		{name: "equal", s1: "AB3D9", s2: "AB3D9", want: 0},
		{name: "one substitution", s1: "AB3D9", s2: "AB3D8", want: 1},
		{name: "deletion plus substitution", s1: "AB3D9", s2: "AB39", want: 1},
		{name: "two substitutions", s1: "AB3D9", s2: "AB299", want: 2},
		{name: "unicode", s1: "héllo", s2: "hello", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, signals.EditDistance(tt.s1, tt.s2))
		})
	}
}
