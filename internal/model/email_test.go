package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailSeen(t *testing.T) {
	tests := []struct {
		name  string
		flags []Flag
		want  bool
	}{
		{"no flags", nil, false},
		{"seen present", []Flag{FlagAnswered, FlagSeen}, true},
		{"seen absent", []Flag{FlagAnswered, FlagFlagged}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Email{Flags: tt.flags}
			assert.Equal(t, tt.want, e.Seen())
		})
	}
}

func TestEmailHasFlag(t *testing.T) {
	e := Email{Flags: []Flag{FlagSeen, FlagFlagged}}
	assert.True(t, e.HasFlag(FlagSeen))
	assert.True(t, e.HasFlag(FlagFlagged))
	assert.False(t, e.HasFlag(FlagDeleted))
}

func TestWithFlag(t *testing.T) {
	original := []Flag{FlagSeen}

	added := WithFlag(original, FlagFlagged)
	assert.ElementsMatch(t, []Flag{FlagSeen, FlagFlagged}, added)
	assert.Equal(t, []Flag{FlagSeen}, original, "WithFlag must not mutate its input")

	unchanged := WithFlag(original, FlagSeen)
	assert.Equal(t, original, unchanged, "adding an already-present flag is a no-op")
}

func TestWithoutFlag(t *testing.T) {
	original := []Flag{FlagSeen, FlagFlagged, FlagDeleted}

	removed := WithoutFlag(original, FlagFlagged)
	assert.Equal(t, []Flag{FlagSeen, FlagDeleted}, removed)
	assert.Equal(t, []Flag{FlagSeen, FlagFlagged, FlagDeleted}, original, "WithoutFlag must not mutate its input")

	unchanged := WithoutFlag(original, FlagDraft)
	assert.Equal(t, original, unchanged, "removing an absent flag is a no-op")
}
