//go:build windows

package keystroke

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ============================================================================
// Windows low-level keyboard hook
// ============================================================================
//
// WH_KEYBOARD_LL sees every key before it reaches the focused application,
// including synthetic input. KBDLLHOOKSTRUCT.flags carries LLKHF_INJECTED for
// events produced by SendInput/keybd_event, which marks our own replacement
// keystrokes.
//
// The hook must be installed from a thread that pumps messages, so the
// goroutine is locked to its OS thread for the lifetime of the hook.
//
// Characters are produced with ToUnicodeEx against the keyboard layout of
// the foreground window's thread, since the hook thread's own layout never
// changes.

const (
	whKeyboardLL = 13

	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
	wmQuit       = 0x0012

	llkhfInjected = 0x10

	// Do not change the keyboard state (dead keys) when translating.
	toUnicodeNoStateChange = 0x4
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW        = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx      = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")
	procGetMessageW              = user32.NewProc("GetMessageW")
	procPostThreadMessageW       = user32.NewProc("PostThreadMessageW")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetKeyboardLayout        = user32.NewProc("GetKeyboardLayout")
	procGetKeyState              = user32.NewProc("GetKeyState")
	procToUnicodeEx              = user32.NewProc("ToUnicodeEx")
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// HookSource delivers key events from a WH_KEYBOARD_LL hook.
type HookSource struct {
	baseSource
	buffer int
	logger *slog.Logger

	threadMu sync.Mutex
	threadID uint32
	hook     uintptr
	done     chan struct{}

	mods    vkModifiers
	repeats repeatTracker
}

func newPlatformSource(opts Options) (Source, error) {
	switch opts.Kind {
	case KindAuto, KindHook:
		return NewHookSource(opts.Buffer, opts.Logger), nil
	}
	return nil, fmt.Errorf("%w: source %q not supported on windows", ErrNotAvailable, opts.Kind)
}

// NewHookSource creates a low-level hook source.
func NewHookSource(buffer int, logger *slog.Logger) *HookSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookSource{buffer: buffer, logger: logger, repeats: repeatTracker{}}
}

// Name implements Source.
func (h *HookSource) Name() string { return KindHook }

// Available reports whether user32 exposes the hook API.
func (h *HookSource) Available() (bool, string) {
	if err := procSetWindowsHookExW.Find(); err != nil {
		return false, fmt.Sprintf("user32 hook API unavailable: %v", err)
	}
	return true, "Windows low-level keyboard hook available"
}

// Start installs the hook on a dedicated message thread.
func (h *HookSource) Start(ctx context.Context) (<-chan Event, error) {
	ch, err := h.open(h.buffer)
	if err != nil {
		return nil, err
	}

	ready := make(chan error, 1)
	h.done = make(chan struct{})
	go h.messageLoop(ready)

	select {
	case err := <-ready:
		if err != nil {
			<-h.done
			h.close()
			return nil, err
		}
	case <-time.After(time.Second):
		h.close()
		return nil, fmt.Errorf("%w: timeout waiting for keyboard hook", ErrNotAvailable)
	}

	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.done:
		}
	}()

	h.logger.Info("keyboard hook installed")
	return ch, nil
}

func (h *HookSource) messageLoop(ready chan<- error) {
	defer close(h.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if state, _, _ := procGetKeyState.Call(vkCapital); state&1 != 0 {
		h.mods.caps = true
	}

	callback := windows.NewCallback(h.hookProc)
	hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, callback, 0, 0)
	if hook == 0 {
		ready <- fmt.Errorf("%w: SetWindowsHookExW: %v", ErrPermissionDenied, callErr)
		return
	}

	h.threadMu.Lock()
	h.hook = hook
	h.threadID = windows.GetCurrentThreadId()
	h.threadMu.Unlock()
	ready <- nil

	var msg winMsg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
	}

	procUnhookWindowsHookEx.Call(hook)
	h.threadMu.Lock()
	h.hook = 0
	h.threadID = 0
	h.threadMu.Unlock()
}

func (h *HookSource) hookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kb := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		h.handle(uint32(wParam), kb)
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (h *HookSource) handle(msg uint32, kb *kbdLLHookStruct) {
	switch msg {
	case wmKeyUp, wmSysKeyUp:
		h.mods.release(kb.VkCode)
		h.repeats.release(kb.VkCode)
		return
	case wmKeyDown, wmSysKeyDown:
	default:
		return
	}

	repeat := h.repeats.press(kb.VkCode)
	if !repeat {
		h.mods.press(kb.VkCode)
	}
	ev := Event{
		Modifiers: h.mods.mods(),
		Repeat:    repeat,
		Injected:  kb.Flags&llkhfInjected != 0,
	}
	if k, ok := vkKeys[kb.VkCode]; ok {
		ev.Key = k
	} else if r := h.translate(kb); r != 0 {
		ev.Char = r
	} else {
		ev.Key = KeyOther
	}
	h.emit(ev)
}

// translate runs ToUnicodeEx with the foreground window's layout.
func (h *HookSource) translate(kb *kbdLLHookStruct) rune {
	fg, _, _ := procGetForegroundWindow.Call()
	tid, _, _ := procGetWindowThreadProcessId.Call(fg, 0)
	hkl, _, _ := procGetKeyboardLayout.Call(tid)

	var state [256]byte
	h.mods.keyState(&state)
	var buf [4]uint16
	n, _, _ := procToUnicodeEx.Call(
		uintptr(kb.VkCode),
		uintptr(kb.ScanCode),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		toUnicodeNoStateChange,
		hkl,
	)
	if int32(n) != 1 {
		return 0
	}
	r := rune(buf[0])
	if r < 0x20 || r == 0x7f {
		return 0
	}
	return r
}

// Stop removes the hook and ends the message thread.
func (h *HookSource) Stop() error {
	h.threadMu.Lock()
	tid := h.threadID
	h.threadMu.Unlock()
	if tid != 0 {
		procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	}
	if h.done != nil {
		<-h.done
	}
	h.close()
	return nil
}
