package runtimeinit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"a9i/src/config"
)

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(config.EnvFileEnvVar, "")
}

func TestBootstrapConfigError(t *testing.T) {
	isolate(t)
	_, err := Bootstrap(context.Background(), Options{
		LoadOptions: config.LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.toml")},
	})
	if err == nil || !strings.Contains(err.Error(), "failed to load configuration") {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestBootstrapPreflightAborts(t *testing.T) {
	isolate(t)
	stop := errors.New("already running")
	var seen *config.Config
	_, err := Bootstrap(context.Background(), Options{
		Preflight: func(ctx context.Context, cfg *config.Config) error {
			seen = cfg
			return stop
		},
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected the preflight error, got %v", err)
	}
	if seen == nil || len(seen.Bindings) == 0 {
		t.Fatal("preflight should receive the loaded configuration")
	}
}

func TestLogBanner(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := config.Defaults()
	cfg.Backend.APIKey = "sk-0123456789abcdef"

	logBanner(log, &cfg)

	out := buf.String()
	for _, want := range []string{"combo=ctrl+alt+t", "mode=translate", "model=a9i-translate:latest", "mode=define"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("banner leaked the API key")
	}
}

func TestBootstrapHeadlessStartsWithoutVirtualKeyboard(t *testing.T) {
	isolate(t)
	t.Setenv("A9I_UI_ALLOW_HEADLESS", "true")
	t.Setenv("A9I_BACKEND_PING_ON_START", "false")

	var stderr bytes.Buffer
	rt, err := Bootstrap(context.Background(), Options{Stderr: &stderr})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer rt.Close()
	if rt.Clipboard == nil || rt.Copier == nil {
		t.Fatalf("expected clipboard and copier, got %+v", rt)
	}
	if rt.Backend == nil || rt.Backend.Name() != "ollama" {
		t.Errorf("expected default ollama backend, got %v", rt.Backend)
	}
}
