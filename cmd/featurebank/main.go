// Command featurebank builds, publishes and inspects aggregate feature
// banks from collections of raw sample files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "featurebank",
	Short:         "Extract features from sample files into one contiguous feature bank",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newBuildCmd(), newPublishCmd(), newInspectCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "featurebank:", err)
		os.Exit(1)
	}
}
