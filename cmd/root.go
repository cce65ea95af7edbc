package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/ddbx/cmd/item"
	"github.com/ValentinKolb/ddbx/cmd/serve"
	"github.com/ValentinKolb/ddbx/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ddbx",
		Short: "envelope-driven command dispatch for DynamoDB-style stores",
		Long: fmt.Sprintf(`ddbx (v%s)

Runs item and table commands, carried in message envelopes, against
DynamoDB or a local DynamoDB-compatible store. Commands are executed
by a ddbx server and sent to it over RPC.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ddbx",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ddbx v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(item.ItemCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "avro", util.WrapString("serializer to use (avro, json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
