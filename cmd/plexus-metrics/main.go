// Plexus Metrics counts Plexus account activity over clock-aligned windows
// and serves it as summaries on the command line, over HTTP and in a
// terminal dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/plexus-ai/plexus-metrics/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
