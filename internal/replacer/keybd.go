package replacer

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// KeybdInjector emits synthetic key presses through the OS input API
// (uinput on Linux, SendInput on Windows, CGEvent on macOS).
type KeybdInjector struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

// NewKeybdInjector creates the OS injector. On Linux the virtual uinput
// device needs a moment before the desktop starts listening to it.
func NewKeybdInjector() (*KeybdInjector, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	return &KeybdInjector{kb: kb}, nil
}

// Backspace presses and releases Backspace once.
func (k *KeybdInjector) Backspace() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	k.kb.SetKeys(vkBackspace)
	return k.kb.Launching()
}

// Paste sends the platform paste gesture: Cmd+V on macOS, Ctrl+V elsewhere.
func (k *KeybdInjector) Paste() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	k.kb.SetKeys(keybd_event.VK_V)
	return k.kb.Launching()
}
