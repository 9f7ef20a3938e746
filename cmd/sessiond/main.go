// Command sessiond runs the session-streaming daemon: it owns the PTY
// Supervisor, Output Classifier, Log Tailer, Session Registry, Fan-out Hub,
// Input Coordinator, and both transports, wired together behind a cobra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperstream/sessiond/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var bindAddr string

	root := &cobra.Command{
		Use:   "sessiond",
		Short: "Session-streaming daemon: multiplex terminal sessions to local and remote subscribers",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(bindAddr)
		},
	}
	serve.Flags().StringVar(&bindAddr, "bind", "", "local transport bind address (overrides config.yaml)")

	root.AddCommand(serve)
	root.AddCommand(newConfigCmd())
	return root
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.StateDir()
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir + "/config.yaml")
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", cfg)
			return nil
		},
	}
	return cmd
}
