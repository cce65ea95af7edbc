package item

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/ddbx/cmd/util"
	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/ValentinKolb/ddbx/rpc/client"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcDispatcher *client.RPCDispatcher

	// ItemCommands represents the item command group
	ItemCommands = &cobra.Command{
		Use:                "item",
		Short:              "Run item and table commands on a ddbx shard",
		PersistentPreRunE:  setupItemClient,
		PersistentPostRunE: closeItemClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags (and the shard) to the item commands
	util.SetupRPCClientFlags(ItemCommands)

	key := "table"
	ItemCommands.PersistentFlags().String(key, "", util.WrapString("Table to use instead of the default table of the shard"))

	key = "log-level"
	ItemCommands.PersistentFlags().String(key, "warn", util.WrapString("LogLevel of the client (debug, info, warn, error)"))

	key = "typed"
	ItemCommands.PersistentFlags().Bool(key, false, util.WrapString("Items, keys and results are DynamoDB JSON ({\"id\":{\"S\":\"o-1\"}}) instead of plain JSON"))

	// Add subcommands
	ItemCommands.AddCommand(putCmd)
	ItemCommands.AddCommand(getCmd)
	ItemCommands.AddCommand(delCmd)
	ItemCommands.AddCommand(updateCmd)
	ItemCommands.AddCommand(queryCmd)
	ItemCommands.AddCommand(scanCmd)
	ItemCommands.AddCommand(batchGetCmd)
	ItemCommands.AddCommand(describeCmd)
	ItemCommands.AddCommand(dropTableCmd)
	ItemCommands.AddCommand(perfTestCmd)
}

// setupItemClient initializes the RPC dispatcher
func setupItemClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the dispatcher
	rpcDispatcher, err = client.NewRPCDispatcher(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

func closeItemClient(_ *cobra.Command, _ []string) error {
	if rpcDispatcher == nil {
		return nil
	}
	return rpcDispatcher.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// dispatch runs op on the shard and returns the response section
func dispatch(op ddb.Operation, headers map[string]any) (*envelope.Message, error) {
	if headers == nil {
		headers = make(map[string]any)
	}
	if table := viper.GetString("table"); table != "" {
		headers[ddb.HeaderTableName] = table
	}

	ctx := context.Background()
	if timeout := viper.GetInt("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	env := envelope.NewWithHeaders(envelope.PatternInOut, headers)
	if err := rpcDispatcher.Dispatch(ctx, op.String(), env); err != nil {
		return nil, err
	}
	return env.Out(), nil
}

// printResult prints the named result headers as JSON
func printResult(m *envelope.Message, names ...string) error {
	out, err := util.FormatResult(m, typed(), names...)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func typed() bool {
	return viper.GetBool("typed")
}
