//go:build !(freebsd || linux || netbsd || openbsd || solaris || dragonfly)

package keystroke

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoPrimarySelection(t *testing.T) {
	text, err := readPrimary()
	assert.NoError(t, err)
	assert.Empty(t, text)

	_, ok := NewPrimarySelection().Selection()
	assert.False(t, ok)
}
