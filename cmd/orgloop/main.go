// Command orgloop is the CLI entrypoint: it loads module configuration
// and runs the routing runtime, optionally under a restart-on-crash
// supervisor.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
