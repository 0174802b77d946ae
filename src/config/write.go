package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ErrConfigExists is returned by WriteDefault when the target exists and
// force is false.
var ErrConfigExists = errors.New("config file already exists")

// fileDoc is the on-disk TOML shape. Durations are written as strings
// ("300ms") which viper decodes back into time.Duration.
type fileDoc struct {
	Backend  fileBackend   `toml:"backend"`
	Bindings []fileBinding `toml:"bindings"`
	Capture  fileCapture   `toml:"capture"`
	Popup    filePopup     `toml:"popup"`
	UI       fileUI        `toml:"ui"`
	Log      fileLog       `toml:"log"`
	Resident fileResident  `toml:"resident"`
}

type fileBackend struct {
	Provider     string  `toml:"provider"`
	BaseURL      string  `toml:"base_url"`
	APIKeyFile   string  `toml:"api_key_file"`
	DefaultModel string  `toml:"default_model"`
	Temperature  float64 `toml:"temperature"`
	Timeout      string  `toml:"timeout"`
	PingOnStart  bool    `toml:"ping_on_start"`
	Referer      string  `toml:"referer,omitempty"`
}

type fileBinding struct {
	Combo string `toml:"combo"`
	Mode  string `toml:"mode"`
	Model string `toml:"model,omitempty"`
}

type fileCapture struct {
	SettleDelay  string `toml:"settle_delay"`
	PollAttempts int    `toml:"poll_attempts"`
	PollInterval string `toml:"poll_interval"`
}

type filePopup struct {
	OffsetX          int    `toml:"offset_x"`
	OffsetY          int    `toml:"offset_y"`
	EllipsisInterval string `toml:"ellipsis_interval"`
	AutoHide         string `toml:"auto_hide"`
	FadeDuration     string `toml:"fade_duration"`
	FrameInterval    string `toml:"frame_interval"`
}

type fileUI struct {
	Kind          string `toml:"kind"`
	Tray          bool   `toml:"tray"`
	AllowHeadless bool   `toml:"allow_headless"`
}

type fileLog struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

type fileResident struct {
	Enabled   bool `toml:"enabled"`
	PortStart int  `toml:"port_start"`
	PortEnd   int  `toml:"port_end"`
}

func toFileDoc(c Config) fileDoc {
	doc := fileDoc{
		Backend: fileBackend{
			Provider:     c.Backend.Provider,
			BaseURL:      c.Backend.BaseURL,
			APIKeyFile:   c.Backend.APIKeyFile,
			DefaultModel: c.Backend.DefaultModel,
			Temperature:  c.Backend.Temperature,
			Timeout:      c.Backend.Timeout.String(),
			PingOnStart:  c.Backend.PingOnStart,
			Referer:      c.Backend.Referer,
		},
		Capture: fileCapture{
			SettleDelay:  c.Capture.SettleDelay.String(),
			PollAttempts: c.Capture.PollAttempts,
			PollInterval: c.Capture.PollInterval.String(),
		},
		Popup: filePopup{
			OffsetX:          c.Popup.OffsetX,
			OffsetY:          c.Popup.OffsetY,
			EllipsisInterval: c.Popup.EllipsisInterval.String(),
			AutoHide:         c.Popup.AutoHide.String(),
			FadeDuration:     c.Popup.FadeDuration.String(),
			FrameInterval:    c.Popup.FrameInterval.String(),
		},
		UI: fileUI{
			Kind:          c.UI.Kind,
			Tray:          c.UI.Tray,
			AllowHeadless: c.UI.AllowHeadless,
		},
		Log: fileLog{
			Format: c.Log.Format,
			Level:  c.Log.Level,
			File:   c.Log.File,
		},
		Resident: fileResident{
			Enabled:   c.Resident.Enabled,
			PortStart: c.Resident.PortStart,
			PortEnd:   c.Resident.PortEnd,
		},
	}
	for _, b := range c.Bindings {
		doc.Bindings = append(doc.Bindings, fileBinding(b))
	}
	return doc
}

// WriteDefault writes the built-in configuration as TOML to path. The API key
// itself is never written; only the key file location is.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrConfigExists)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# a9i configuration. Env vars A9I_<SECTION>_<KEY> override these values."); err != nil {
		return err
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(toFileDoc(Defaults())); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
