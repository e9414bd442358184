package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "outbound-peer",
	Short: "nearbylink outbound-peer CLI - drives one outbound offline-transfer session",
	Long: `outbound-peer dials a discovered peer over TCP, runs the UKEY2
handshake, and holds the resulting encrypted session open.

This tool supports:
- Connecting to a peer by address and watching the handshake complete
- Sending a single payload once the session is encrypted
- Serving Prometheus metrics and a health endpoint while connected`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Commands are registered in their respective files:
	// - connect.go: connectCmd
}
