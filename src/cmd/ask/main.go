package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"a9i/src/backend"
	"a9i/src/config"
	"a9i/src/logutil"
	"a9i/src/messages"
)

const (
	maxInputSizeKB = 64
	maxInputSize   = maxInputSizeKB * 1024
)

type askOptions struct {
	text       string
	filePath   string
	mode       string
	model      string
	configFile string
	jsonOutput bool
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"a9i-ask"}
	}

	opts := &askOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *askOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "a9i-ask [text]",
		Short:         "Send text to the model bound to a lookup mode and print the answer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.text = args[0]
			}
			return runWithOptions(cmd.Context(), *opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Read input from a file (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.mode, "mode", string(messages.ModeDefault), "Lookup mode: translate, define or default")
	cmd.Flags().StringVar(&opts.model, "model", "", "Override the model for this request")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to a TOML config file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	return cmd
}

func runWithOptions(ctx context.Context, opts askOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	// Logs go to stderr only with -v so stdout carries nothing but the answer.
	level := slog.LevelError + 1
	if opts.verbose {
		level = slog.LevelDebug
	}
	if _, err := logutil.Setup(logutil.Options{Format: logutil.FormatText, Level: level, Stderr: stderr}); err != nil {
		return err
	}

	mode, err := messages.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	input, source, err := readInput(opts, stdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: opts.configFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("config loaded", "file", cfg.ConfigFile, "provider", cfg.Backend.Provider, "api_key", logutil.RedactKey(cfg.Backend.APIKey))

	provider, err := backend.NewProvider(cfg.BackendSettings())
	if err != nil {
		return err
	}

	model := opts.model
	if model == "" {
		model = cfg.Models()[mode]
	}
	if model == "" {
		model = cfg.Backend.DefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
	defer cancel()

	slog.Debug("sending request", "mode", mode, "model", model, "chars", len(input))
	start := time.Now()
	text, err := provider.Generate(ctx, model, input)
	elapsed := time.Since(start)
	if err != nil {
		slog.Debug("request failed", "elapsed", elapsed, "err", err)
		return fmt.Errorf("lookup failed: %w", err)
	}
	text = strings.TrimSpace(text)
	slog.Debug("request completed", "elapsed", elapsed, "chars", len(text))

	return outputResult(stdout, AskResult{
		Text:     text,
		Mode:     string(mode),
		Model:    model,
		Source:   source,
		Duration: elapsed.Seconds(),
	}, opts.jsonOutput)
}

func readInput(opts askOptions, stdin io.Reader) (string, string, error) {
	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case opts.text != "":
		data, source = []byte(opts.text), "argument"
	case opts.filePath == "-" || opts.filePath == "":
		data, err = io.ReadAll(io.LimitReader(stdin, maxInputSize+1))
		source = "stdin"
		if err != nil {
			return "", "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	default:
		data, err = os.ReadFile(opts.filePath)
		source = opts.filePath
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
		}
	}

	if len(data) > maxInputSize {
		return "", "", fmt.Errorf("input exceeds maximum size of %d KB", maxInputSizeKB)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", "", fmt.Errorf("input is empty")
	}
	return text, source, nil
}

type AskResult struct {
	Text     string  `json:"text"`
	Mode     string  `json:"mode"`
	Model    string  `json:"model"`
	Source   string  `json:"source"`
	Duration float64 `json:"duration_seconds"`
}

func outputResult(w io.Writer, res AskResult, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(res); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	_, err := fmt.Fprintln(w, res.Text)
	return err
}
