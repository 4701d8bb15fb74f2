package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLabels(t *testing.T) {
	text := "1. Nintendo Switch\n- handheld console\n* game controller\n\n  screen  \n5. joystick\nextra"

	got := parseLabels(text, 5)
	assert.Equal(t, []string{"Nintendo Switch", "handheld console", "game controller", "screen", "joystick"}, got)
}

func TestParseLabelsUnlimited(t *testing.T) {
	got := parseLabels("a\nb\nc", 0)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestParseLabelsEmpty(t *testing.T) {
	assert.Empty(t, parseLabels("", 5))
	assert.Empty(t, parseLabels("\n\n  \n", 5))
}
