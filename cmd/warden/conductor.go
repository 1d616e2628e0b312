package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/engine"
)

// runOpts are the flags of conductor run.
type runOpts struct {
	hostname       string
	drivers        []string
	attributes     map[string]string
	allowOverwrite bool
}

var (
	conductorRun runOpts
	listAll      bool

	// conductorCmd represents the conductor command group
	conductorCmd = &cobra.Command{
		Use:   "conductor",
		Short: "Register conductors and inspect liveness",
	}

	conductorRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Register this process as a conductor and heartbeat until interrupted",
		Long:  "Register a conductor, keep its heartbeat fresh and unregister it on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConductor(ctx, conf, cmd.OutOrStdout(), conductorRun)
		},
	}

	conductorListCmd = &cobra.Command{
		Use:   "list",
		Short: "List live conductors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConductorList(cmd.Context(), conf, cmd.OutOrStdout(), listAll)
		},
	}

	conductorGetCmd = &cobra.Command{
		Use:   "get [hostname]",
		Short: "Show a conductor record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConductorGet(cmd.Context(), conf, cmd.OutOrStdout(), args[0])
		},
	}

	conductorUnregisterCmd = &cobra.Command{
		Use:   "unregister [hostname]",
		Short: "Mark a conductor offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConductorUnregister(cmd.Context(), conf, cmd.OutOrStdout(), args[0])
		},
	}
)

func init() {
	conductorCmd.AddCommand(conductorRunCmd)
	conductorCmd.AddCommand(conductorListCmd)
	conductorCmd.AddCommand(conductorGetCmd)
	conductorCmd.AddCommand(conductorUnregisterCmd)

	hostname, _ := os.Hostname()

	f := conductorRunCmd.Flags()
	f.StringVar(&conductorRun.hostname, "hostname", hostname, wrapString("Hostname to register under"))
	f.StringSliceVar(&conductorRun.drivers, "driver", nil, wrapString("Driver this conductor serves (repeatable)"))
	f.StringToStringVar(&conductorRun.attributes, "attr", nil, wrapString("Attributes as key=value pairs"))
	f.BoolVar(&conductorRun.allowOverwrite, "allow-overwrite", false, wrapString("Take over an existing online record with the same hostname"))

	conductorListCmd.Flags().BoolVar(&listAll, "all", false, wrapString("Include offline and stale conductors"))
}

// runConductor heartbeats until ctx is done, then unregisters.
func runConductor(ctx context.Context, s settings, out io.Writer, opts runOpts) error {
	if opts.hostname == "" {
		return fmt.Errorf("conductor hostname is required")
	}
	s.AllowOverwrite = opts.allowOverwrite
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "conductor %s online\n", opts.hostname)
		<-ctx.Done()
		return nil
	},
		engine.WithHostname(opts.hostname),
		engine.WithDrivers(opts.drivers...),
		engine.WithAttributes(opts.attributes),
	)
}

func runConductorList(ctx context.Context, s settings, out io.Writer, all bool) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		var (
			list []*conductor.Conductor
			err  error
		)
		if all {
			list, err = eng.Registry().List(ctx)
		} else {
			list, err = eng.Alive(ctx)
		}
		if err != nil {
			return err
		}
		return printJSON(out, list)
	})
}

func runConductorGet(ctx context.Context, s settings, out io.Writer, hostname string) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		c, err := eng.Registry().Get(ctx, hostname)
		if err != nil {
			return err
		}
		return printJSON(out, c)
	})
}

func runConductorUnregister(ctx context.Context, s settings, out io.Writer, hostname string) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Registry().Unregister(ctx, hostname); err != nil {
			return err
		}
		fmt.Fprintf(out, "conductor %s offline\n", hostname)
		return nil
	})
}
