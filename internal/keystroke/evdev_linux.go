//go:build linux

package keystroke

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"textswitcher/internal/layout"
)

// EvdevSource reads /dev/input keyboards. The kernel reports key positions,
// so characters are decoded with the configured layout.
type EvdevSource struct {
	baseSource
	assumed layout.Layout
	buffer  int
	logger  *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	devices []string
}

// NewEvdevSource creates an evdev source decoding with the assumed layout.
func NewEvdevSource(assumed layout.Layout, buffer int, logger *slog.Logger) *EvdevSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvdevSource{assumed: assumed, buffer: buffer, logger: logger}
}

// Name implements Source.
func (e *EvdevSource) Name() string { return KindEvdev }

// Available checks if we can read input devices.
func (e *EvdevSource) Available() (bool, string) {
	devices, err := findKeyboardDevices()
	if err != nil {
		return false, fmt.Sprintf("cannot find keyboard devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard devices found"
	}
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found keyboard device: %s", dev)
		}
	}
	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

// findKeyboardDevices finds /dev/input devices that are keyboards.
func findKeyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	var devices []string
	add := func(dev string) {
		if real, err := filepath.EvalSymlinks(dev); err == nil {
			dev = real
		}
		if !seen[dev] {
			seen[dev] = true
			devices = append(devices, dev)
		}
	}

	scanner := bufio.NewScanner(f)
	var handler string
	hasKbd, hasRep := false, false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					handler = "/dev/input/" + part
				}
				if part == "kbd" {
					hasKbd = true
				}
			}
		case strings.HasPrefix(line, "B: EV="):
			// EV_REP separates keyboards from power buttons, which also
			// carry EV_KEY.
			bits, err := strconv.ParseUint(strings.TrimPrefix(line, "B: EV="), 16, 64)
			hasRep = err == nil && bits&(1<<evRep) != 0
		case line == "":
			if hasKbd && hasRep && handler != "" {
				add(handler)
			}
			handler = ""
			hasKbd, hasRep = false, false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	matches, _ := filepath.Glob("/dev/input/by-id/*-event-kbd")
	for _, m := range matches {
		add(m)
	}
	return devices, nil
}

// Start opens every readable keyboard device.
func (e *EvdevSource) Start(ctx context.Context) (<-chan Event, error) {
	devices, err := findKeyboardDevices()
	if err != nil || len(devices) == 0 {
		return nil, ErrNotAvailable
	}

	var files []*os.File
	denied := false
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY|syscall.O_NONBLOCK, 0)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				denied = true
			}
			e.logger.Debug("skip input device", "device", dev, "error", err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		if denied {
			return nil, ErrPermissionDenied
		}
		return nil, ErrNotAvailable
	}

	ch, err := e.open(e.buffer)
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, err
	}
	e.devices = devices

	ctx, e.cancel = context.WithCancel(ctx)
	for _, f := range files {
		e.wg.Add(1)
		go e.readLoop(ctx, f)
	}
	go func() {
		e.wg.Wait()
		e.close()
	}()

	e.logger.Info("evdev source started", "devices", len(files), "layout", e.assumed.String())
	return ch, nil
}

// inputEvent matches the Linux input_event struct.
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

func parseInputEvent(buf []byte) inputEvent {
	return inputEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

func (e *EvdevSource) readLoop(ctx context.Context, f *os.File) {
	defer e.wg.Done()
	defer f.Close()

	eventSize := binary.Size(inputEvent{})
	buf := make([]byte, eventSize*64)
	fds := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLIN}}
	var state modifierState

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := unix.Poll(fds, 100)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.logger.Warn("poll input device", "device", f.Name(), "error", err)
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			e.logger.Warn("input device gone", "device", f.Name())
			return
		}

		read, err := f.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				continue
			}
			e.logger.Warn("read input device", "device", f.Name(), "error", err)
			return
		}
		for off := 0; off+eventSize <= read; off += eventSize {
			ev := parseInputEvent(buf[off : off+eventSize])
			if ev.Type != evKey {
				continue
			}
			state.update(ev.Code, ev.Value)
			if ev.Value == keyRelease {
				continue
			}
			out, ok := decodeScancode(ev.Code, state.mods(), e.assumed)
			if !ok {
				continue
			}
			out.Repeat = ev.Value == keyRepeat
			e.emit(out)
		}
	}
}

// Stop stops reading and waits for the device loops to exit.
func (e *EvdevSource) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.close()
	return nil
}
