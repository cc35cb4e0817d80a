package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "appserver",
		Short: "Embedded multi-tenant HTTP application server",
		Long: `appserver hosts several web applications behind one or more ports.

Applications are directories under a host's app base (or .war/.zip
bundles dropped there). Each one serves static files, compiled pages
and handler units mapped by its WEB-INF/web.yaml, and is redeployed
when that descriptor changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
