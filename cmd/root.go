package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ariesdevil/aerospike-server/cmd/serve"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "asd",
		Short: "multi-tenant key-value database storage server",
		Long: fmt.Sprintf(`asd (v%s)

A multi-tenant key-value database storage server written in Go. Each
namespace owns a pluggable storage engine - pure in-memory or
device-backed with write-block buffering, defragmentation and warm
restart support.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of asd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("asd v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
