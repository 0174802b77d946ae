package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"a9i/src/backend"
	"a9i/src/messages"
)

const (
	EnvPrefix         = "A9I"
	EnvFileEnvVar     = "A9I_ENV_FILE"
	ConfigName        = "a9i"
	DefaultAPIKeyPath = "/run/secrets/api_keys/a9i"

	UIFyne    = "fyne"
	UIConsole = "console"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Bindings []Binding      `mapstructure:"bindings"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Popup    PopupConfig    `mapstructure:"popup"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
	Resident ResidentConfig `mapstructure:"resident"`

	// ConfigFile is the TOML file that was read, "" when none was found.
	ConfigFile string `mapstructure:"-"`
}

type BackendConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyFile   string        `mapstructure:"api_key_file"`
	DefaultModel string        `mapstructure:"default_model"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PingOnStart  bool          `mapstructure:"ping_on_start"`
	// Referer is sent as HTTP-Referer to OpenAI-compatible gateways when set.
	Referer string `mapstructure:"referer"`
}

// Binding maps a key combination to a mode. An empty Model falls back to
// Backend.DefaultModel.
type Binding struct {
	Combo string `mapstructure:"combo"`
	Mode  string `mapstructure:"mode"`
	Model string `mapstructure:"model"`
}

type CaptureConfig struct {
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	PollAttempts int           `mapstructure:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type PopupConfig struct {
	OffsetX          int           `mapstructure:"offset_x"`
	OffsetY          int           `mapstructure:"offset_y"`
	EllipsisInterval time.Duration `mapstructure:"ellipsis_interval"`
	AutoHide         time.Duration `mapstructure:"auto_hide"`
	FadeDuration     time.Duration `mapstructure:"fade_duration"`
	FrameInterval    time.Duration `mapstructure:"frame_interval"`
}

type UIConfig struct {
	Kind string `mapstructure:"kind"`
	Tray bool   `mapstructure:"tray"`
	// AllowHeadless lets the daemon start without a system clipboard.
	AllowHeadless bool `mapstructure:"allow_headless"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
}

type ResidentConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PortStart int  `mapstructure:"port_start"`
	PortEnd   int  `mapstructure:"port_end"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile overrides TOML discovery.
	ConfigFile string
	// Flags are bound on top of every other source. Flag names use dashes
	// ("log-level") and map onto dotted keys ("log.level").
	Flags *pflag.FlagSet
	// EnvFile overrides .env discovery.
	EnvFile string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			Provider:     backend.ProviderOllama,
			BaseURL:      backend.DefaultOllamaURL,
			APIKeyFile:   DefaultAPIKeyPath,
			DefaultModel: "a9i-default:latest",
			Temperature:  0,
			Timeout:      backend.DefaultTimeout,
			PingOnStart:  true,
		},
		Bindings: []Binding{
			{Combo: "ctrl+alt+t", Mode: string(messages.ModeTranslate), Model: "a9i-translate:latest"},
			{Combo: "ctrl+alt+d", Mode: string(messages.ModeDefine), Model: "a9i-define:latest"},
		},
		Capture: CaptureConfig{
			SettleDelay:  300 * time.Millisecond,
			PollAttempts: 7,
			PollInterval: 100 * time.Millisecond,
		},
		Popup: PopupConfig{
			OffsetX:          25,
			OffsetY:          25,
			EllipsisInterval: 400 * time.Millisecond,
			AutoHide:         7 * time.Second,
			FadeDuration:     250 * time.Millisecond,
			FrameInterval:    16 * time.Millisecond,
		},
		UI: UIConfig{
			Kind: UIFyne,
			Tray: true,
		},
		Log: LogConfig{
			Format: "auto",
			Level:  "info",
		},
		Resident: ResidentConfig{
			Enabled:   true,
			PortStart: 49500,
			PortEnd:   49550,
		},
	}
}

// Load resolves configuration with precedence (lowest → highest):
// defaults → TOML file → A9I_* env vars (including values from .env) → flags.
func Load(opts LoadOptions) (*Config, error) {
	// .env only seeds the process environment; real env vars win.
	envPath := opts.EnvFile
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	setDefaults(v, Defaults())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/a9i/")
		if dir, err := userConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = resolveAPIKey(cfg.Backend.APIKeyFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend.provider", d.Backend.Provider)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.api_key", d.Backend.APIKey)
	v.SetDefault("backend.api_key_file", d.Backend.APIKeyFile)
	v.SetDefault("backend.default_model", d.Backend.DefaultModel)
	v.SetDefault("backend.temperature", d.Backend.Temperature)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.ping_on_start", d.Backend.PingOnStart)
	v.SetDefault("backend.referer", d.Backend.Referer)

	bindings := make([]map[string]any, 0, len(d.Bindings))
	for _, b := range d.Bindings {
		bindings = append(bindings, map[string]any{"combo": b.Combo, "mode": b.Mode, "model": b.Model})
	}
	v.SetDefault("bindings", bindings)

	v.SetDefault("capture.settle_delay", d.Capture.SettleDelay)
	v.SetDefault("capture.poll_attempts", d.Capture.PollAttempts)
	v.SetDefault("capture.poll_interval", d.Capture.PollInterval)

	v.SetDefault("popup.offset_x", d.Popup.OffsetX)
	v.SetDefault("popup.offset_y", d.Popup.OffsetY)
	v.SetDefault("popup.ellipsis_interval", d.Popup.EllipsisInterval)
	v.SetDefault("popup.auto_hide", d.Popup.AutoHide)
	v.SetDefault("popup.fade_duration", d.Popup.FadeDuration)
	v.SetDefault("popup.frame_interval", d.Popup.FrameInterval)

	v.SetDefault("ui.kind", d.UI.Kind)
	v.SetDefault("ui.tray", d.UI.Tray)
	v.SetDefault("ui.allow_headless", d.UI.AllowHeadless)

	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("resident.enabled", d.Resident.Enabled)
	v.SetDefault("resident.port_start", d.Resident.PortStart)
	v.SetDefault("resident.port_end", d.Resident.PortEnd)
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"log-format": "log.format",
	"log-level":  "log.level",
	"log-file":   "log.file",
	"ui":         "ui.kind",
	"provider":   "backend.provider",
	"base-url":   "backend.base_url",
	"model":      "backend.default_model",
	"headless":   "ui.allow_headless",
}

// negatedFlags switch a boolean key off when passed explicitly.
var negatedFlags = map[string]string{
	"no-tray":     "ui.tray",
	"no-ping":     "backend.ping_on_start",
	"no-resident": "resident.enabled",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if key, ok := negatedFlags[f.Name]; ok {
			if f.Changed && f.Value.String() == "true" {
				v.Set(key, false)
			}
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Backend.Provider) {
	case "", backend.ProviderOllama, backend.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}

	if len(c.Bindings) == 0 {
		errs = append(errs, errors.New("bindings: at least one hotkey binding is required"))
	}
	combos := map[string]bool{}
	models := map[messages.Mode]string{}
	for i, b := range c.Bindings {
		combo := NormalizeCombo(b.Combo)
		if combo == "" {
			errs = append(errs, fmt.Errorf("bindings[%d]: empty combo", i))
		} else if combos[combo] {
			errs = append(errs, fmt.Errorf("bindings[%d]: duplicate combo %q", i, b.Combo))
		}
		combos[combo] = true

		mode, err := messages.ParseMode(b.Mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("bindings[%d]: %w", i, err))
			continue
		}
		model := c.modelFor(b)
		if prev, ok := models[mode]; ok && prev != model {
			errs = append(errs, fmt.Errorf("bindings[%d]: mode %s already uses model %q", i, mode, prev))
		}
		models[mode] = model
		if model == "" {
			errs = append(errs, fmt.Errorf("bindings[%d]: no model and no backend.default_model", i))
		}
	}

	if c.Capture.SettleDelay <= 0 || c.Capture.PollInterval <= 0 || c.Capture.PollAttempts <= 0 {
		errs = append(errs, errors.New("capture: settle_delay, poll_attempts and poll_interval must be positive"))
	}
	if c.Popup.EllipsisInterval <= 0 || c.Popup.AutoHide <= 0 || c.Popup.FrameInterval <= 0 {
		errs = append(errs, errors.New("popup: ellipsis_interval, auto_hide and frame_interval must be positive"))
	}
	if c.Popup.FadeDuration < 0 {
		errs = append(errs, errors.New("popup.fade_duration must not be negative"))
	}

	switch c.UI.Kind {
	case UIFyne, UIConsole:
	default:
		errs = append(errs, fmt.Errorf("ui.kind: unknown UI %q (want fyne or console)", c.UI.Kind))
	}

	if c.Resident.PortStart < 1024 || c.Resident.PortEnd > 65535 || c.Resident.PortEnd < c.Resident.PortStart {
		errs = append(errs, fmt.Errorf("resident: invalid port range %d-%d", c.Resident.PortStart, c.Resident.PortEnd))
	}

	return errors.Join(errs...)
}

// Models returns the model used for each bound mode.
func (c *Config) Models() map[messages.Mode]string {
	out := make(map[messages.Mode]string, len(c.Bindings))
	for _, b := range c.Bindings {
		mode, err := messages.ParseMode(b.Mode)
		if err != nil {
			continue
		}
		out[mode] = c.modelFor(b)
	}
	return out
}

func (c *Config) modelFor(b Binding) string {
	if m := strings.TrimSpace(b.Model); m != "" {
		return m
	}
	return c.Backend.DefaultModel
}

// BackendSettings converts the backend section for backend.NewProvider.
func (c *Config) BackendSettings() backend.Config {
	return backend.Config{
		Provider:     c.Backend.Provider,
		BaseURL:      c.Backend.BaseURL,
		APIKey:       c.Backend.APIKey,
		DefaultModel: c.Backend.DefaultModel,
		Temperature:  c.Backend.Temperature,
		Timeout:      c.Backend.Timeout,
		Referer:      c.Backend.Referer,
	}
}

// NormalizeCombo lower-cases a combo and strips blanks around "+".
func NormalizeCombo(combo string) string {
	parts := strings.Split(strings.ToLower(combo), "+")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "+")
}

// DefaultPath is where `a9i config init` writes and Load looks per user.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigName+".toml"), nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "a9i"), nil
}

// resolveEnvPath prefers a .env next to the executable, then $A9I_ENV_FILE.
func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveAPIKey(keyPath string) string {
	if keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
				return fileKey
			}
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENROUTER_API_KEY")
}
