package clipboard

import (
	"log/slog"
	"sync"

	"golang.design/x/clipboard"
)

// System reads and writes the OS text clipboard.
type System struct {
	writeMu sync.Mutex
}

// Headless is a no-op clipboard for environments without a display server.
// Reads always return empty text and writes are discarded.
type Headless struct{}

func (Headless) Read() (string, error)   { return "", nil }
func (Headless) Write(text string) error { return nil }

// Backend is what New returns: a System clipboard, or Headless when the
// platform clipboard cannot be initialised.
type Backend interface {
	Read() (string, error)
	Write(text string) error
}

// New initialises the platform clipboard. When initialisation fails and
// allowHeadless is set, a Headless clipboard is returned instead of the error.
func New(allowHeadless bool) (Backend, error) {
	if err := clipboard.Init(); err != nil {
		if allowHeadless {
			slog.Warn("clipboard unavailable, running headless", "err", err)
			return Headless{}, nil
		}
		return nil, err
	}
	return &System{}, nil
}

// Read returns the current text content, or "" when the clipboard holds no text.
func (s *System) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (s *System) Write(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
