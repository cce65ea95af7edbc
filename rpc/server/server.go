package server

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/ddb/local"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/serializer"
	"github.com/ValentinKolb/ddbx/rpc/transport"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store client, the command configuration of the shard
// and the adapter that handles requests for it
type serverShard struct {
	Client  ddb.Client
	Config  ddb.Configuration
	Adapter IRPCServerAdapter
}

// ServerOption configures optional parts of the RPC server
type ServerOption func(s *rpcServer)

// WithClient makes the server use client instead of creating one from the configured backend.
// The client is not closed by the server.
func WithClient(client ddb.Client) ServerOption {
	return func(s *rpcServer) {
		s.client = client
		s.ownsClient = false
	}
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewAvroSerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	opts ...ServerOption,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create the RPC server
	s := &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		ownsClient: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return s
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	client     ddb.Client
	ownsClient bool
}

// handle is the transport handler: it decodes the request, runs the adapter of the shard
// and encodes the response
func (s *rpcServer) handle(ctx context.Context, shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	// Case shard does not exist -> error
	if !ok {
		respMsg = common.NewErrorResponse(ddb.NewError(ddb.RetCOperationFailed, fmt.Sprintf("shard %d not found", shardId)))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(ddb.NewError(ddb.RetCOperationFailed, fmt.Sprintf("failed to deserialize request: %s", err)))
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(ctx, &msg, shard.Client, shard.Config)
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			ddb.NewError(ddb.RetCOperationFailed, fmt.Sprintf("failed to serialize response: %s", err))))
	}
	return val
}

func (s *rpcServer) init(ctx context.Context) error {

	// Create the store client
	if s.client == nil {
		client, err := newStoreClient(ctx, s.config)
		if err != nil {
			return err
		}
		s.client = client
	}

	// Configure the timeout for store calls and table bootstrap
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of shards. All shards share the store
		client, each shard has its own default table and operation.
	*/

	for _, shardConfig := range s.config.Shards {
		cfg, err := s.config.DdbConfiguration(shardConfig)
		if err != nil {
			return fmt.Errorf("invalid shard %d: %w", shardConfig.ShardID, err)
		}

		if s.config.CreateTables {
			wait := timeout
			if wait <= 0 {
				wait = time.Minute
			}
			if err = ddb.EnsureTable(ctx, s.client, cfg, wait); err != nil {
				return fmt.Errorf("failed to bootstrap table of shard %d: %w", shardConfig.ShardID, err)
			}
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Client:  s.client,
			Config:  cfg,
			Adapter: NewDispatchServerAdapter(shardConfig.ShardID, timeout),
		})
		Logger.Infof("created shard %d for table %s", shardConfig.ShardID, cfg.TableName)
	}

	Logger.Infof("ddbx setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the store client plus the shards and start the transport layer.
// It returns once ctx is cancelled or the transport fails.
func (s *rpcServer) Serve(ctx context.Context) error {
	err := s.init(ctx)
	if err != nil {
		s.close()
		return err
	}
	defer s.close()
	return s.transport.Listen(ctx, s.config)
}

// close releases the store client if the server created it
func (s *rpcServer) close() {
	if !s.ownsClient {
		return
	}
	if closer, ok := s.client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			Logger.Errorf("failed to close store client: %v", err)
		}
	}
}

// --------------------------------------------------------------------------
// Store client
// --------------------------------------------------------------------------

// newStoreClient creates the store client of the configured backend
func newStoreClient(ctx context.Context, config common.ServerConfig) (ddb.Client, error) {
	switch config.Backend {
	case common.StoreBackendAWS:
		var opts []func(*awsconfig.LoadOptions) error
		if config.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(config.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if config.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(config.AWSEndpoint)
			}
		}), nil

	case common.StoreBackendMemory, "":
		return local.New(local.NewMemoryBackend())

	case common.StoreBackendBadger:
		backend, err := local.NewBadgerBackend(local.BadgerOptions{
			Dir:        config.DataDir,
			SyncWrites: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger backend: %w", err)
		}
		client, err := local.New(backend)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("invalid backend: %s", config.Backend)
	}
}
