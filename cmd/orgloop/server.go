package main

import (
	"context"

	"github.com/spf13/cobra"
)

func createServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the runtime and control API with no modules pre-loaded",
		Long:  "orgloop server --host=127.0.0.1 --port=4800",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerOnly(cmd.Context())
		},
	}
}

func runServerOnly(ctx context.Context) error {
	rt, stopMetrics, err := buildRuntime()
	if err != nil {
		return err
	}
	defer stopMetrics()
	return startAndWait(ctx, rt)
}
