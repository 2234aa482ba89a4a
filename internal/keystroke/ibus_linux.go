//go:build linux

package keystroke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// IBus D-Bus names.
const (
	IBusService          = "org.freedesktop.IBus"
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusFactoryPath      = "/org/freedesktop/IBus/Factory"

	IBusBusName    = "org.textswitcher.IBus"
	IBusEngineName = "textswitcher"
)

// IBusSource is an IBus engine that passes every key through unchanged and
// reports it. IBus hands engines the keysym of the active XKB layout, so
// characters are exact for whatever layout the user has selected.
type IBusSource struct {
	baseSource
	buffer int
	logger *slog.Logger

	conn     *dbus.Conn
	stateMu  sync.Mutex
	down     map[uint32]bool
	engineID uint32
	stop     context.CancelFunc
}

// NewIBusSource creates an IBus source.
func NewIBusSource(buffer int, logger *slog.Logger) *IBusSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &IBusSource{buffer: buffer, logger: logger, down: make(map[uint32]bool)}
}

// Name implements Source.
func (e *IBusSource) Name() string { return KindIBus }

// ibusConn connects to the IBus bus when IBUS_ADDRESS is set and to the
// session bus otherwise.
func ibusConn() (*dbus.Conn, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		conn, err := dbus.Connect(addr)
		if err != nil {
			return nil, fmt.Errorf("connect to ibus bus: %w", err)
		}
		return conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return conn, nil
}

// Available reports whether an IBus daemon owns its well-known name.
func (e *IBusSource) Available() (bool, string) {
	conn, err := ibusConn()
	if err != nil {
		return false, err.Error()
	}
	defer conn.Close()

	var has bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, IBusService).Store(&has)
	if err != nil {
		return false, fmt.Sprintf("query ibus daemon: %v", err)
	}
	if !has {
		return false, "ibus daemon is not running"
	}
	return true, "ibus daemon available (select the textswitcher engine)"
}

// Start connects to the bus and exports the factory and engine objects.
func (e *IBusSource) Start(ctx context.Context) (<-chan Event, error) {
	conn, err := ibusConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	reply, err := conn.RequestName(IBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, ErrAlreadyRunning
	}

	ch, err := e.open(e.buffer)
	if err != nil {
		conn.Close()
		return nil, err
	}

	e.stateMu.Lock()
	e.conn = conn
	e.stateMu.Unlock()

	if err := conn.Export(&ibusFactory{source: e}, IBusFactoryPath, IBusFactoryInterface); err != nil {
		e.Stop()
		return nil, fmt.Errorf("export factory: %w", err)
	}
	if err := conn.Export(e, dbus.ObjectPath("/org/freedesktop/IBus/Engine/"+IBusEngineName), IBusEngineInterface); err != nil {
		e.Stop()
		return nil, fmt.Errorf("export engine: %w", err)
	}

	ctx, e.stop = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		e.Stop()
	}()

	e.logger.Info("ibus source started", "bus_name", IBusBusName)
	return ch, nil
}

// Stop releases the bus connection and closes the event channel.
func (e *IBusSource) Stop() error {
	e.stateMu.Lock()
	conn := e.conn
	e.conn = nil
	e.stateMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if e.stop != nil {
		e.stop()
	}
	e.close()
	return nil
}

// ProcessKeyEvent handles key press/release events from IBus. It always
// returns false so the key reaches the application.
func (e *IBusSource) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	e.handleKey(keyval, state, time.Now())
	return false, nil
}

func (e *IBusSource) handleKey(keyval, state uint32, now time.Time) {
	e.stateMu.Lock()
	if state&ibusReleaseMask != 0 {
		delete(e.down, keyval)
		e.stateMu.Unlock()
		return
	}
	repeat := e.down[keyval]
	e.down[keyval] = true
	e.stateMu.Unlock()

	ev := decodeKeysym(keyval, state&^ibusReleaseMask)
	ev.Time = now
	ev.Repeat = repeat
	e.emit(ev)
}

func (e *IBusSource) focusChanged() {
	e.stateMu.Lock()
	clear(e.down)
	e.stateMu.Unlock()
	e.emit(Event{Key: KeyFocus})
}

// FocusIn is called when an input context gains focus.
func (e *IBusSource) FocusIn() *dbus.Error {
	e.focusChanged()
	return nil
}

// FocusOut is called when an input context loses focus.
func (e *IBusSource) FocusOut() *dbus.Error {
	e.focusChanged()
	return nil
}

// Reset is called on caret jumps inside the same field.
func (e *IBusSource) Reset() *dbus.Error {
	e.logger.Debug("ibus reset")
	return nil
}

func (e *IBusSource) Enable() *dbus.Error                                    { return nil }
func (e *IBusSource) Disable() *dbus.Error                                   { return nil }
func (e *IBusSource) Destroy() *dbus.Error                                   { return nil }
func (e *IBusSource) SetCapabilities(caps uint32) *dbus.Error                { return nil }
func (e *IBusSource) SetContentType(purpose, hints uint32) *dbus.Error       { return nil }
func (e *IBusSource) SetCursorLocation(x, y, w, h int32) *dbus.Error         { return nil }
func (e *IBusSource) PropertyActivate(name string, state uint32) *dbus.Error { return nil }
func (e *IBusSource) PageUp() *dbus.Error                                    { return nil }
func (e *IBusSource) PageDown() *dbus.Error                                  { return nil }
func (e *IBusSource) CursorUp() *dbus.Error                                  { return nil }
func (e *IBusSource) CursorDown() *dbus.Error                                { return nil }
func (e *IBusSource) CandidateClicked(index, button, state uint32) *dbus.Error {
	return nil
}

// ibusFactory implements the IBus Factory D-Bus interface.
type ibusFactory struct {
	source *IBusSource
}

// CreateEngine exports a new engine object for the requested engine name.
func (f *ibusFactory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != IBusEngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"unknown engine: " + engineName})
	}

	f.source.stateMu.Lock()
	defer f.source.stateMu.Unlock()
	if f.source.conn == nil {
		return "", dbus.MakeFailedError(errors.New("engine stopped"))
	}
	f.source.engineID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", f.source.engineID))
	if err := f.source.conn.Export(f.source, path, IBusEngineInterface); err != nil {
		return "", dbus.MakeFailedError(err)
	}
	f.source.logger.Debug("ibus engine created", "path", string(path))
	return path, nil
}
