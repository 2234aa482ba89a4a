//go:build freebsd || linux || netbsd || openbsd || solaris || dragonfly

package keystroke

import "github.com/atotto/clipboard"

func selectRegular() {
	clipboard.Primary = false
}

func readPrimary() (string, error) {
	clipMu.Lock()
	defer clipMu.Unlock()
	clipboard.Primary = true
	defer func() { clipboard.Primary = false }()
	return clipboard.ReadAll()
}
