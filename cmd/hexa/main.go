// Command hexa generates resource modules for a hexa project.
//
// Usage:
//
//	hexa generate resource <name> --fields name:string,price:float
//	hexa version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hexa",
		Short: "hexa project tooling",
		Long: `hexa generates resource modules that plug into the generic
repository, service and controller layers of a hexa project.

Examples:
  hexa generate resource order --fields number:string,total:float,placedAt:time
  hexa version`,
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(newGenerateCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
