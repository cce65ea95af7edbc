package socket

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection is a single connection to an endpoint. It is dialed again on
// the next request after it broke.
type clientConnection struct {
	endpoint string
	parent   *ClientTransport

	mu      sync.Mutex // protects conn and serializes writes
	conn    net.Conn
	pending *xsync.MapOf[uint64, chan responseResult]
}

// ClientTransport sends framed requests over stream sockets (tcp or unix).
// Requests are balanced round-robin over all connections and correlated with
// their responses by request id, so one connection carries many requests at once.
type ClientTransport struct {
	network       string
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64
	nextRequestID atomic.Uint64
	stopping      atomic.Bool
}

// --------------------------------------------------------------------------
// Transport Factory Methods
// --------------------------------------------------------------------------

// NewSocketClientTransport creates a client transport for network ("tcp" or "unix")
func NewSocketClientTransport(network string) *ClientTransport {
	return &ClientTransport{network: network}
}

// NewTCPClientTransport creates a tcp client transport
func NewTCPClientTransport() *ClientTransport {
	return NewSocketClientTransport("tcp")
}

// NewUnixClientTransport creates a unix socket client transport
func NewUnixClientTransport() *ClientTransport {
	return NewSocketClientTransport("unix")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *ClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.closeConnections()
	t.config = config
	t.stopping.Store(false)

	connectionsPerEP := max(config.ConnectionsPerEndpoint, 1)
	connections := make([]*clientConnection, 0, len(config.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Endpoints {
		// tcp://host:port and unix:///path are accepted as well
		if _, rest, found := strings.Cut(endpoint, "://"); found {
			endpoint = rest
		}

		for i := 0; i < connectionsPerEP; i++ {
			c := &clientConnection{
				endpoint: endpoint,
				parent:   t,
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
			}
			if _, err := c.connection(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connections = append(connections, c)
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Endpoints)*connectionsPerEP, len(config.Endpoints), t.network)
	return nil
}

func (t *ClientTransport) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	// We always try at least once
	maxRetries := max(t.config.RetryCount, 1)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		c := t.nextConnection()
		if c == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := c.send(ctx, shardId, t.nextRequestID.Add(1), req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if ctx.Err() != nil {
			break
		}

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
			}
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %v", maxRetries, lastErr)
}

func (t *ClientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// nextConnection selects the next connection via Round Robin
func (t *ClientTransport) nextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

// closeConnections closes all connections, their readers fail the pending requests
func (t *ClientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, c := range t.connections {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}
	t.connections = nil
}

// connection returns the open connection, dialing a new one if there is none
func (c *clientConnection) connection() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}
	if c.parent.stopping.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	conn, err := net.DialTimeout(c.parent.network, c.endpoint, c.parent.timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}
	c.conn = conn
	go c.readResponses(conn)
	return conn, nil
}

// send writes one request and waits for its response
func (c *clientConnection) send(ctx context.Context, shardId, requestID uint64, req []byte) ([]byte, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	timeout := c.parent.timeout()

	c.mu.Lock()
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err = writeFrame(conn, shardId, requestID, req)
	c.mu.Unlock()
	if err != nil {
		c.drop(conn)
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readResponses distributes the responses read from conn to the waiting requests
// until conn breaks
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		shardID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if !c.parent.stopping.Load() {
				Logger.Warningf("Connection to %s lost: %v", c.endpoint, err)
			}
			c.drop(conn)
			c.failPending(fmt.Errorf("error reading response: %v", err))
			return
		}

		if respCh, found := c.pending.LoadAndDelete(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
		}
	}
}

// drop closes conn, the next request dials a new connection
func (c *clientConnection) drop(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	_ = conn.Close()
}

func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, _ chan responseResult) bool {
		if respCh, found := c.pending.LoadAndDelete(requestID); found {
			respCh <- responseResult{err: err}
		}
		return true
	})
}

func (t *ClientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}
