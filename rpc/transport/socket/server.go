package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	_ transport.IRPCServerTransport = (*ServerTransport)(nil)
	_ transport.IRPCClientTransport = (*ClientTransport)(nil)
)

const (
	DefaultBufferSize        = 64 * 1024 // 64 KB
	DefaultMaxWorkersPerConn = 16
)

// ServerTransport serves framed requests on a stream socket (tcp or unix).
// Requests of one connection are handled concurrently by up to maxWorkersPerConn workers.
type ServerTransport struct {
	network           string
	handler           transport.ServerHandleFunc
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

// --------------------------------------------------------------------------
// Transport Factory Methods
// --------------------------------------------------------------------------

// NewSocketServerTransport creates a server transport for network ("tcp" or "unix")
func NewSocketServerTransport(network string, bufferSize int, maxWorkersPerConn int) *ServerTransport {
	bufferSize = max(bufferSize, frameHeaderSize)

	return &ServerTransport{
		network:           network,
		maxWorkersPerConn: max(maxWorkersPerConn, 1),
		conns:             make(map[net.Conn]struct{}),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// NewTCPServerTransport creates a tcp server transport with default settings
func NewTCPServerTransport() *ServerTransport {
	return NewSocketServerTransport("tcp", DefaultBufferSize, DefaultMaxWorkersPerConn)
}

// NewUnixServerTransport creates a unix socket server transport with default settings
func NewUnixServerTransport() *ServerTransport {
	return NewSocketServerTransport("unix", DefaultBufferSize, DefaultMaxWorkersPerConn)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *ServerTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	// a stale socket file blocks the bind
	if t.network == "unix" {
		if err := os.RemoveAll(config.Endpoint); err != nil {
			return fmt.Errorf("failed to remove existing socket: %v", err)
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, t.network, config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create %s listener: %v", t.network, err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.network, listener.Addr(), t.maxWorkersPerConn)

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
		t.closeConnections()
	}()

	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				Logger.Infof("%s server on %s stopped", t.network, listener.Addr())
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		if !t.track(conn) {
			_ = conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer t.untrack(conn)
			t.handleConnection(ctx, conn, timeout)
		}()
	}
}

// Addr returns the address the transport listens on, nil before Listen was called
func (t *ServerTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// track registers an open connection, false if the transport is shutting down
func (t *ServerTransport) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns == nil {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *ServerTransport) untrack(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}

func (t *ServerTransport) closeConnections() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.conns {
		_ = conn.Close()
	}
	t.conns = nil
}

// handleConnection handles incoming requests for one connection
func (t *ServerTransport) handleConnection(ctx context.Context, conn net.Conn, timeout time.Duration) {
	defer conn.Close()

	// The buffered channel acts as a counting semaphore for the workers of this connection
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	var wg sync.WaitGroup

	// Protects writes to the connection
	var connMutex sync.Mutex

	handleResponse := func(shardID, requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(ctx, shardID, data)
		Logger.Debugf("Processed request for shard %d with requestID %d took %s", shardID, requestID, time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// The response carries the requestID of the request
		if err := writeFrame(conn, shardID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	for {
		buf := t.bufferPool.Get().([]byte)

		shardID, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			switch {
			case errors.Is(err, io.EOF), ctx.Err() != nil:
				Logger.Debugf("Connection closed")
			default:
				Logger.Errorf("Error handling request: %v", err)
			}
			break
		}

		// blocks while maxWorkersPerConn requests are in flight
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workerSemaphore
				wg.Done()
			}()
			handleResponse(shardID, requestID, data)
		}()
	}

	// in-flight requests still get their responses written
	wg.Wait()
}
