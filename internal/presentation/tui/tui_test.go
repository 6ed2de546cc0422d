package tui

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestBanner_Ascii(t *testing.T) {
	out := banner(termenv.Ascii, "v1.2.3\n", "abc")

	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "v1.2.3  session abc")
	for _, l := range bannerLines {
		assert.Contains(t, out, l.text)
	}
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer()

	out, err := render("# Commands\n\n- `:undo` restores the last checkpoint\n")
	assert.NoError(t, err)
	assert.True(t, strings.Contains(out, "Commands"))
	assert.Contains(t, out, ":undo")
}
