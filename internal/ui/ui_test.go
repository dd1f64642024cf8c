package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	// Given: a bytes.Buffer (not a TTY)
	buf := &bytes.Buffer{}

	// Then: returns false
	assert.False(t, IsTTY(buf))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestUseColor(t *testing.T) {
	buf := &bytes.Buffer{}

	// A buffer is never a terminal.
	assert.False(t, UseColor(buf, false))

	t.Setenv("NO_COLOR", "")
	assert.False(t, UseColor(buf, true))
}

func TestNoColorStyles_RenderUnchanged(t *testing.T) {
	styles := NoColorStyles()

	assert.Equal(t, "plain", styles.Header.Render("plain"))
	assert.Equal(t, "plain", styles.Match.Render("plain"))
	assert.Equal(t, "plain", styles.Error.Render("plain"))
}

func TestDefaultStyles_HeaderIsBold(t *testing.T) {
	assert.True(t, DefaultStyles().Header.GetBold())
	assert.False(t, NoColorStyles().Header.GetBold())
}
