package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "pbctl",
		Short:   "PayBridge operator tool: sign test webhooks, drive the sandbox",
		Version: Version,
	}

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(sandboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
