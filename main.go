package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "bustix",
		Short:         "Bus seat booking, payment, cancellation and boarding verification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("bustix: " + err.Error() + "\n")
		os.Exit(1)
	}
}
