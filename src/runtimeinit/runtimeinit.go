// Package runtimeinit performs the startup sequence shared by the daemon
// commands: configuration, logging, clipboard and backend checks.
package runtimeinit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"a9i/src/backend"
	"a9i/src/clipboard"
	"a9i/src/config"
	"a9i/src/logutil"
	"a9i/src/messages"
)

const pingTimeout = 10 * time.Second

type Options struct {
	LoadOptions config.LoadOptions
	// Stderr receives console logs; nil means os.Stderr.
	Stderr io.Writer
	// Preflight runs after configuration is loaded and before any device is
	// touched. Returning an error aborts startup.
	Preflight func(ctx context.Context, cfg *config.Config) error
}

// Runtime is everything Bootstrap initialised.
type Runtime struct {
	Config    *config.Config
	Clipboard clipboard.Backend
	Copier    clipboard.Copier
	Backend   backend.Provider
	Logger    *slog.Logger

	logCloser io.Closer
}

// Close releases the log file.
func (r *Runtime) Close() error {
	if r.logCloser == nil {
		return nil
	}
	return r.logCloser.Close()
}

// Bootstrap loads configuration, installs the global logger and brings up the
// clipboard and backend. Any error here is fatal to the daemon.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Preflight != nil {
		if err := opts.Preflight(ctx, cfg); err != nil {
			return nil, err
		}
	}

	closer, err := logutil.Setup(logutil.Options{
		Format: logutil.ParseFormat(cfg.Log.Format),
		Level:  logutil.ParseLevel(cfg.Log.Level),
		File:   cfg.Log.File,
		Stderr: opts.Stderr,
	})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: slog.Default(), logCloser: closer}

	enableDPIAwareness(rt.Logger)
	logMonitorConfiguration(rt.Logger)

	if rt.Clipboard, err = clipboard.New(cfg.UI.AllowHeadless); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	rt.Copier = clipboard.NewCopier(rt.Logger)

	settings := cfg.BackendSettings()
	if rt.Backend, err = backend.NewProvider(settings); err != nil {
		rt.Close()
		return nil, err
	}
	if cfg.Backend.PingOnStart {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := rt.Backend.Ping(pctx)
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		rt.Logger.Info("backend ping succeeded", "provider", rt.Backend.Name(), "url", settings.BaseURL)
	}

	logBanner(rt.Logger, cfg)
	return rt, nil
}

func logBanner(log *slog.Logger, cfg *config.Config) {
	log.Info("a9i starting",
		"provider", cfg.Backend.Provider,
		"config", cfg.ConfigFile,
		"api_key", logutil.RedactKey(cfg.Backend.APIKey),
		"ui", cfg.UI.Kind,
	)
	models := cfg.Models()
	for _, b := range cfg.Bindings {
		mode, _ := messages.ParseMode(b.Mode)
		log.Info("hotkey", "combo", config.NormalizeCombo(b.Combo), "mode", mode, "model", models[mode])
	}
}
