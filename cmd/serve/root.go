package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/ddbx/cmd/util"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the ddbx server",
		Long:    `Start the ddbx server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DDBX_<flag> (e.g. DDBX_AWS_REGION=eu-central-1)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=ddbx", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TABLE[:OPERATION] where TABLE is the default table of the shard and OPERATION the command run for requests that name none (e.g. 100=Orders,200=Orders:GetItem)"))

	key = "backend"
	ServeCmd.PersistentFlags().String(key, "memory", cmdUtil.WrapString("Store the commands run against (aws, memory, badger). aws uses DynamoDB or the endpoint set with --aws-endpoint, memory and badger run a local DynamoDB-compatible store"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(badger backend) DataDir is the directory the tables are stored in"))

	key = "aws-region"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(aws backend) Region of the DynamoDB tables, defaults to the region of the AWS configuration"))

	key = "aws-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(aws backend) Custom DynamoDB endpoint, e.g. http://localhost:8000 for DynamoDB local"))

	key = "key-attr"
	ServeCmd.PersistentFlags().String(key, "id", cmdUtil.WrapString("Name of the hash key attribute of created tables"))

	key = "key-type"
	ServeCmd.PersistentFlags().String(key, "S", cmdUtil.WrapString("Type of the hash key attribute (S, N, B)"))

	key = "range-attr"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of the range key attribute of created tables (empty = no range key)"))

	key = "range-type"
	ServeCmd.PersistentFlags().String(key, "S", cmdUtil.WrapString("Type of the range key attribute (S, N, B)"))

	key = "read-capacity"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Provisioned read capacity of created tables (0 = default)"))

	key = "write-capacity"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Provisioned write capacity of created tables (0 = default)"))

	key = "consistent-read"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Use strongly consistent reads unless a request says otherwise"))

	key = "return-values"
	ServeCmd.PersistentFlags().String(key, "NONE", cmdUtil.WrapString("Attributes write commands return unless a request says otherwise (NONE, ALL_OLD, UPDATED_OLD, ALL_NEW, UPDATED_NEW)"))

	key = "create-table"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Create the table of a shard on startup if it does not exist"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of store calls and of waiting for created tables"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080 or /tmp/ddbx.sock for the unix transport)"))

	key = "metrics-path"
	ServeCmd.PersistentFlags().String(key, "/metrics", cmdUtil.WrapString("Path the Prometheus metrics are served on (empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	serveCmdConfig.Shards = []common.ServerShard{}
	seen := make(map[uint64]bool)
	for _, shardConfig := range strings.Split(viper.GetString("shards"), ",") {
		shard, err := common.ParseServerShard(strings.TrimSpace(shardConfig))
		if err != nil {
			return err
		}
		if seen[shard.ShardID] {
			return fmt.Errorf("duplicate shard ID %d", shard.ShardID)
		}
		seen[shard.ShardID] = true
		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shard)
	}

	// parse the backend
	backend, err := common.ParseStoreBackend(viper.GetString("backend"))
	if err != nil {
		return err
	}
	serveCmdConfig.Backend = backend

	// check the log level early, the loggers are set up in run
	if _, err = common.ParseLogLevel(viper.GetString("log-level")); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.AWSRegion = viper.GetString("aws-region")
	serveCmdConfig.AWSEndpoint = viper.GetString("aws-endpoint")
	serveCmdConfig.KeyAttributeName = viper.GetString("key-attr")
	serveCmdConfig.KeyAttributeType = viper.GetString("key-type")
	serveCmdConfig.RangeAttributeName = viper.GetString("range-attr")
	serveCmdConfig.RangeAttributeType = viper.GetString("range-type")
	serveCmdConfig.ReadCapacity = viper.GetInt64("read-capacity")
	serveCmdConfig.WriteCapacity = viper.GetInt64("write-capacity")
	serveCmdConfig.ConsistentRead = viper.GetBool("consistent-read")
	serveCmdConfig.ReturnValues = strings.ToUpper(viper.GetString("return-values"))
	serveCmdConfig.CreateTables = viper.GetBool("create-table")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsPath = viper.GetString("metrics-path")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// every shard must yield a valid command configuration
	for _, shard := range serveCmdConfig.Shards {
		if _, err = serveCmdConfig.DdbConfiguration(shard); err != nil {
			return fmt.Errorf("invalid configuration for shard %s: %w", shard, err)
		}
	}

	return nil
}

// run starts the ddbx server and blocks until it is interrupted
func run(_ *cobra.Command, _ []string) error {

	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve(ctx)
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddbx")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

}
