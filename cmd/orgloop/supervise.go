package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orgloop/orgloop/internal/supervisor"
)

func createSuperviseCommand() *cobra.Command {
	var pidFile string
	cmd := &cobra.Command{
		Use:   "supervise -- <orgloop run|server ...>",
		Short: "Run a child orgloop process, restarting it on crash",
		Long:  "orgloop supervise -- run --module modules/slack.json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervised(cmd.Context(), args, pidFile)
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid-file", defaultSupervisorPIDFile(), "path to write the supervisor's pid")
	return cmd
}

func defaultSupervisorPIDFile() string {
	return filepath.Join(orgloopHome(), "supervisor.pid")
}

func runSupervised(ctx context.Context, childArgs []string, pidFile string) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	sup := supervisor.New(supervisor.Config{
		Command: append([]string{self}, childArgs...),
		Env:     []string{"ORGLOOP_SUPERVISED=1"},
		PIDFile: pidFile,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	listenSignals(func() {
		sup.Stop()
		cancel()
	})

	return sup.Run(ctx)
}
