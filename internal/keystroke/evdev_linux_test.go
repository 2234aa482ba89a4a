package keystroke

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInputEvent(t *testing.T) {
	buf := make([]byte, 24)
	buf[16] = evKey
	buf[18] = 30 // KEY_A
	buf[20] = keyPress
	ev := parseInputEvent(buf)
	assert.Equal(t, uint16(evKey), ev.Type)
	assert.Equal(t, uint16(30), ev.Code)
	assert.Equal(t, int32(keyPress), ev.Value)
}
