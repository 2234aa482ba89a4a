//go:build !(freebsd || linux || netbsd || openbsd || solaris || dragonfly)

package keystroke

// Only X11 and Wayland have a primary selection.

func selectRegular() {}

func readPrimary() (string, error) {
	return "", nil
}
