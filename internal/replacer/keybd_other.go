//go:build !darwin

package replacer

import "github.com/micmonay/keybd_event"

const vkBackspace = keybd_event.VK_BACKSPACE
