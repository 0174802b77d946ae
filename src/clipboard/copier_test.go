package clipboard

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func stubCopiers(t *testing.T, keyErr error) *RobotCopier {
	t.Helper()
	origKey, origRobot := newKeyCopier, newRobotCopier
	t.Cleanup(func() { newKeyCopier, newRobotCopier = origKey, origRobot })

	robot := &RobotCopier{modifier: "ctrl", tap: func(string, ...interface{}) error { return nil }}
	newKeyCopier = func() (Copier, error) {
		if keyErr != nil {
			return nil, keyErr
		}
		return &KeyCopier{}, nil
	}
	newRobotCopier = func() Copier { return robot }
	return robot
}

func TestNewCopierFallsBackWithoutUinput(t *testing.T) {
	robot := stubCopiers(t, errors.New("virtual keyboard: Not found uinput file"))
	var buf bytes.Buffer

	got := NewCopier(slog.New(slog.NewTextHandler(&buf, nil)))
	if got != Copier(robot) {
		t.Fatalf("expected robotgo fallback, got %T", got)
	}
	if !strings.Contains(buf.String(), "uinput") {
		t.Errorf("expected the fallback to log the cause, got %q", buf.String())
	}
}

func TestNewCopierPrefersVirtualKeyboard(t *testing.T) {
	stubCopiers(t, nil)
	if _, ok := NewCopier(nil).(*KeyCopier); !ok {
		t.Fatal("expected the virtual keyboard copier")
	}
}

func TestRobotCopierTapsCopyChord(t *testing.T) {
	var key string
	var mods []interface{}
	r := &RobotCopier{modifier: "ctrl", tap: func(k string, args ...interface{}) error {
		key, mods = k, args
		return nil
	}}
	if err := r.SendCopyShortcut(); err != nil {
		t.Fatalf("SendCopyShortcut: %v", err)
	}
	if key != "c" || len(mods) != 1 || mods[0] != "ctrl" {
		t.Errorf("unexpected tap %q %v", key, mods)
	}

	r.tap = func(string, ...interface{}) error { return errors.New("no display") }
	if err := r.SendCopyShortcut(); err == nil || !strings.Contains(err.Error(), "no display") {
		t.Errorf("expected tap error to surface, got %v", err)
	}
}
