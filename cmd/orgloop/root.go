package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orgloop/orgloop/internal/build"
)

var rootCmd = &cobra.Command{
	Use:   "orgloop",
	Short: "Declarative event-routing runtime",
	Long:  "orgloop [run|server|supervise] [flags]",
}

func init() {
	rootCmd.PersistentFlags().String("host", "127.0.0.1", "HTTP surface host")
	rootCmd.PersistentFlags().String("port", "4800", "HTTP surface port")
	rootCmd.PersistentFlags().String("metrics-port", "", "metrics listener port, disabled if empty")
	rootCmd.PersistentFlags().String("heartbeat-file", "", "path to write the heartbeat file, defaults to ~/.orgloop/heartbeat when --daemon is set")
	rootCmd.PersistentFlags().Bool("daemon", false, "enable the heartbeat writer by default (also set by ORGLOOP_DAEMON)")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("metrics_port", rootCmd.PersistentFlags().Lookup("metrics-port"))
	_ = viper.BindPFlag("heartbeat_file", rootCmd.PersistentFlags().Lookup("heartbeat-file"))
	_ = viper.BindPFlag("daemon", rootCmd.PersistentFlags().Lookup("daemon"))

	viper.SetEnvPrefix("orgloop")
	viper.AutomaticEnv()

	rootCmd.AddCommand(createRunCommand())
	rootCmd.AddCommand(createServerCommand())
	rootCmd.AddCommand(createSuperviseCommand())
	rootCmd.AddCommand(createVersionCommand())
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the orgloop version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(build.AppName, build.Version)
			return nil
		},
	}
}

// listenSignals calls stop when SIGINT/SIGTERM arrives.
func listenSignals(stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		stop()
	}()
}
