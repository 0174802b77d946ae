package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"a9i/src/config"
	"a9i/src/logutil"
	"a9i/src/messages"
	"a9i/src/notification"
	"a9i/src/resident"
	"a9i/src/runtimeinit"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var errNoResident = errors.New("no running a9i daemon found")

type mainOptions struct {
	configFile string
	envFile    string
	force      bool
}

func init() {
	// fyne and systray must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"a9i"}
	}
	cmd := newRootCmd(&mainOptions{})
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "a9i",
		Short:         "Quick lookup overlay: select text, press a hotkey, read the answer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to a TOML config file")
	pf.StringVar(&opts.envFile, "env-file", "", "Path to a .env file")
	pf.String("log-format", "", "Console log format: auto, text or json")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-file", "", "Also write JSON logs to this file")
	pf.String("ui", "", "Popup UI: fyne or console")
	pf.String("provider", "", "Backend provider: ollama or openai")
	pf.String("base-url", "", "Backend base URL")
	pf.String("model", "", "Model for bindings without one")
	pf.Bool("headless", false, "Continue without a system clipboard")
	pf.Bool("no-tray", false, "Do not show a tray icon")
	pf.Bool("no-ping", false, "Skip the backend reachability check")
	pf.Bool("no-resident", false, "Do not accept triggers from other a9i processes")

	root.AddCommand(
		newRunCmd(opts),
		newTriggerCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the hotkey daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}
}

func newTriggerCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger [mode]",
		Short: "Ask the running daemon to look up the current selection",
		Long:  "Ask the running daemon to look up the current selection.\nMode is translate, define or default.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) > 0 {
				arg = args[0]
			}
			mode, err := messages.ParseMode(arg)
			if err != nil {
				return err
			}
			cfg, err := config.Load(opts.loadOptions(cmd))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			closer, err := logutil.Setup(logutil.Options{
				Format: logutil.ParseFormat(cfg.Log.Format),
				Level:  logutil.ParseLevel(cfg.Log.Level),
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			client := resident.NewClient(residentPorts(cfg))
			if err := handleTrigger(cmd.Context(), client, mode); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s accepted\n", mode)
			return nil
		},
	}
}

func newConfigCmd(opts *mainOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.OutOrStdout(), opts.configFile, opts.force)
		},
	}
	initCmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "a9i %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (o *mainOptions) loadOptions(cmd *cobra.Command) config.LoadOptions {
	return config.LoadOptions{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
		Flags:      cmd.Flags(),
	}
}

func runDaemon(cmd *cobra.Command, opts *mainOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: opts.loadOptions(cmd),
		Preflight:   ensureSingleResident,
	})
	if err != nil {
		if !logutil.IsTTY(os.Stderr) {
			notification.StartupFailure("a9i failed to start", err)
		}
		return err
	}
	defer rt.Close()

	return runResident(ctx, rt)
}

// ensureSingleResident refuses to start when another daemon already answers
// on the resident port range.
func ensureSingleResident(ctx context.Context, cfg *config.Config) error {
	if !cfg.Resident.Enabled {
		return nil
	}
	if port, ok := resident.DetectResidentPort(ctx, residentPorts(cfg)); ok {
		return fmt.Errorf("a9i is already running on port %d", port)
	}
	return nil
}

// triggerClient is the part of resident.Client the trigger command uses.
type triggerClient interface {
	Trigger(ctx context.Context, mode messages.Mode) (bool, error)
}

func handleTrigger(ctx context.Context, client triggerClient, mode messages.Mode) error {
	found, err := client.Trigger(ctx, mode)
	switch {
	case errors.Is(err, resident.ErrBusy):
		return err
	case err != nil:
		return fmt.Errorf("trigger failed: %w", err)
	case !found:
		return errNoResident
	}
	return nil
}

func initConfig(out io.Writer, path string, force bool) error {
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if err := config.WriteDefault(path, force); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func residentPorts(cfg *config.Config) resident.PortRange {
	return resident.PortRange{Start: cfg.Resident.PortStart, End: cfg.Resident.PortEnd}
}

// legacyFlags are accepted with a single dash for compatibility with the
// flag package conventions.
var legacyFlags = map[string]bool{
	"config": true, "env-file": true, "force": true,
	"log-format": true, "log-level": true, "log-file": true,
	"ui": true, "provider": true, "base-url": true, "model": true,
	"headless": true, "no-tray": true, "no-ping": true, "no-resident": true,
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if legacyFlags[name] {
			normalized[i] = "-" + arg
		}
	}

	return normalized
}
