package clipboard

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/micmonay/keybd_event"
)

// uinput devices on Linux are not usable immediately after creation.
const linuxUinputWarmup = 2 * time.Second

// Copier sends the platform "copy selection" chord (Ctrl+C, Cmd+C on macOS).
type Copier interface {
	SendCopyShortcut() error
}

var (
	newKeyCopier   = func() (Copier, error) { return NewKeyCopier() }
	newRobotCopier = func() Copier { return NewRobotCopier() }
)

// NewCopier prefers the uinput/SendInput virtual keyboard and falls back to
// robotgo's key tap when the virtual device cannot be created, e.g. for a
// Linux user without write access to /dev/uinput.
func NewCopier(log *slog.Logger) Copier {
	if log == nil {
		log = slog.Default()
	}
	kc, err := newKeyCopier()
	if err == nil {
		return kc
	}
	log.Warn("virtual keyboard unavailable, using robotgo key taps", "err", err)
	return newRobotCopier()
}

// KeyCopier drives a keybd_event virtual keyboard.
type KeyCopier struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

// NewKeyCopier prepares a virtual keyboard. On Linux this blocks for the
// uinput warm-up, so call it once at startup rather than per capture.
func NewKeyCopier() (*KeyCopier, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("virtual keyboard: %w", err)
	}
	if runtime.GOOS == "linux" {
		time.Sleep(linuxUinputWarmup)
	}
	kb.SetKeys(keybd_event.VK_C)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return &KeyCopier{kb: kb}, nil
}

// SendCopyShortcut presses and releases the copy chord.
func (k *KeyCopier) SendCopyShortcut() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("send copy shortcut: %w", err)
	}
	return nil
}

// RobotCopier taps the copy chord through robotgo (XTest on X11).
type RobotCopier struct {
	mu       sync.Mutex
	modifier string
	tap      func(key string, args ...interface{}) error
}

func NewRobotCopier() *RobotCopier {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return &RobotCopier{modifier: mod, tap: robotgo.KeyTap}
}

// SendCopyShortcut taps C with the copy modifier held.
func (r *RobotCopier) SendCopyShortcut() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tap("c", r.modifier); err != nil {
		return fmt.Errorf("send copy shortcut: %w", err)
	}
	return nil
}
