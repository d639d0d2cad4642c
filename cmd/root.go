// Package cmd provides the CLI commands for Timegrid.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/config"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/output"
	"github.com/manav03panchal/timegrid/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagDB     string
)

// ctx is the shared runtime context.
var ctx *runtime.Context

// annotationNoRuntime marks commands that run without opening the database.
const annotationNoRuntime = "timegrid/no-runtime"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "timegrid",
	Short: "Plan and report team time on a drag-and-drop grid",
	Long: `Timegrid is a team time-tracking planner. Allocations of people to
projects are drawn on a three-week grid or a week calendar with the mouse,
and every change is saved in the background.

Examples:
  timegrid plan
  timegrid calendar --row @alice
  timegrid alloc add --project website --user alice --from mon --to wed --hours 12
  timegrid totals --group-by member --daily`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ctx != nil {
			err := ctx.Close()
			ctx = nil
			return err
		}
		return nil
	},
}

// setup loads the configuration, initializes logging and opens the runtime.
func setup(cmd *cobra.Command, args []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationNoRuntime]; ok {
			return nil
		}
	}
	if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
		return nil
	}

	if flagDebug {
		logging.InitDebug()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.Global = cfg

	format, ok := output.ParseFormat(flagFormat)
	if !ok {
		return fmt.Errorf("unknown format %q: use cli, json or plain", flagFormat)
	}

	opts := runtime.DefaultOptions()
	opts.Config = cfg
	opts.Format = format
	opts.ColorMode = output.ColorMode(flagColor)
	opts.Debug = flagDebug
	opts.DBPath = flagDB

	ctx, err = runtime.New(opts)
	return err
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(sigCtx)
	if err == nil {
		return runtime.ExitOK
	}
	if ctx != nil {
		printError(err)
		ctx.Close()
		ctx = nil
	} else {
		fmt.Fprintln(os.Stderr, "Error: "+runtime.FormatError(err))
	}
	return runtime.ExitCode(err)
}

// printError writes err in the selected output format.
func printError(err error) {
	if ctx.IsJSON() {
		p := runtime.Explain(err)
		ctx.JSONFormatter().PrintError(err, p.Field, p.Suggestion)
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+runtime.FormatError(err))
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "",
		"Database directory (default: $XDG_DATA_HOME/timegrid/db)")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationNoRuntime: ""},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("timegrid %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
		cmd.Println("")
		cmd.Println("Based on Zeit (https://github.com/mrusme/zeit)")
		cmd.Println("Licensed under SEGV License v1.0")
	},
}
