package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"a9i/src/messages"
	"a9i/src/resident"
)

type stressOptions struct {
	n         int
	mode      string
	deadline  time.Duration
	portStart int
	portEnd   int
}

type stressResult struct {
	launched int
	accepted int32
	busy     int32
	missing  int32
	failed   int32
	elapsed  time.Duration
}

func (r stressResult) String() string {
	return fmt.Sprintf("launched=%d accepted=%d busy=%d no-resident=%d err=%d elapsed=%s",
		r.launched, r.accepted, r.busy, r.missing, r.failed, r.elapsed)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Fire concurrent triggers at the running a9i daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := messages.ParseMode(opts.mode)
			if err != nil {
				return err
			}
			client := resident.NewClient(resident.PortRange{Start: opts.portStart, End: opts.portEnd})
			res := runStress(cmd.Context(), client, mode, *opts)
			return report(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent triggers")
	cmd.Flags().StringVar(&opts.mode, "mode", string(messages.ModeDefault), "lookup mode to trigger")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-trigger timeout")
	cmd.Flags().IntVar(&opts.portStart, "port-start", resident.DefaultPortStart, "first resident port")
	cmd.Flags().IntVar(&opts.portEnd, "port-end", resident.DefaultPortEnd, "last resident port")

	return cmd
}

func runStress(ctx context.Context, client resident.Client, mode messages.Mode, opts stressOptions) stressResult {
	var wg sync.WaitGroup
	res := stressResult{launched: opts.n}

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()
			found, err := client.Trigger(ctx, mode)
			switch {
			case errors.Is(err, resident.ErrBusy):
				atomic.AddInt32(&res.busy, 1)
			case err != nil:
				atomic.AddInt32(&res.failed, 1)
			case !found:
				atomic.AddInt32(&res.missing, 1)
			default:
				atomic.AddInt32(&res.accepted, 1)
			}
		}()
	}
	wg.Wait()
	res.elapsed = time.Since(start)
	return res
}

// report fails when more than one trigger was accepted at once, which would
// mean the daemon let overlapping sessions run.
func report(w io.Writer, res stressResult) error {
	fmt.Fprintln(w, res)
	if res.accepted > 1 && res.busy == 0 {
		return fmt.Errorf("no trigger was rejected as busy")
	}
	return nil
}
