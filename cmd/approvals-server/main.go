package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "approvals-server",
		Short:         "Risk-classified task execution with human approval",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the timeout sweeper",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Auto-reject timed out approvals once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return sweepOnce(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "recover",
			Short: "Continue runs interrupted by a process stop and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return recoverOnce(cmd.Context(), configFile)
			},
		},
	)

	return root
}
