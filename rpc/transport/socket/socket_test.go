package socket

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/ddbx/rpc/common"
)

// startServer runs an echo server that prefixes the request with shardId '#' characters
func startServer(t *testing.T, network, endpoint string) (*ServerTransport, string) {
	t.Helper()

	tr := NewSocketServerTransport(network, 32, 4)
	tr.RegisterHandler(func(_ context.Context, shardId uint64, req []byte) []byte {
		return append([]byte(strings.Repeat("#", int(shardId))), req...)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Listen(ctx, common.ServerConfig{Endpoint: endpoint, TimeoutSecond: 5})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Listen returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Listen did not return after cancel")
		}
	})

	// wait for the listener
	deadline := time.Now().Add(5 * time.Second)
	for tr.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return tr, tr.Addr().String()
}

func TestSendOverSockets(t *testing.T) {
	tests := []struct {
		name     string
		network  string
		endpoint func(t *testing.T) string
	}{
		{"tcp", "tcp", func(t *testing.T) string { return "127.0.0.1:0" }},
		{"unix", "unix", func(t *testing.T) string { return filepath.Join(t.TempDir(), "ddbx.sock") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, addr := startServer(t, tt.network, tt.endpoint(t))

			client := NewSocketClientTransport(tt.network)
			if err := client.Connect(common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 5, RetryCount: 2}); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			defer client.Close()

			resp, err := client.Send(context.Background(), 2, []byte("ping"))
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if string(resp) != "##ping" {
				t.Errorf("Expected ##ping, got %s", resp)
			}

			// empty payload
			resp, err = client.Send(context.Background(), 0, nil)
			if err != nil || len(resp) != 0 {
				t.Errorf("Expected an empty response, got %q, %v", resp, err)
			}
		})
	}
}

func TestSendConcurrentRequests(t *testing.T) {
	_, addr := startServer(t, "tcp", "127.0.0.1:0")

	client := NewTCPClientTransport()
	if err := client.Connect(common.ClientConfig{Endpoints: []string{"tcp://" + addr}, TimeoutSecond: 5, ConnectionsPerEndpoint: 2}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// payloads larger than the pooled buffers
			payload := []byte(fmt.Sprintf("request-%d-%s", i, strings.Repeat("x", i)))
			resp, err := client.Send(context.Background(), 1, payload)
			if err != nil {
				t.Errorf("Send failed: %v", err)
				return
			}
			if !bytes.Equal(resp, append([]byte("#"), payload...)) {
				t.Errorf("Response %q does not belong to request %q", resp, payload)
			}
		}()
	}
	wg.Wait()
}

func TestReconnectAfterServerRestart(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "ddbx.sock")

	tr := NewUnixServerTransport()
	tr.RegisterHandler(func(_ context.Context, _ uint64, req []byte) []byte { return req })

	serve := func() (context.CancelFunc, chan error) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- tr.Listen(ctx, common.ServerConfig{Endpoint: endpoint}) }()
		return cancel, done
	}

	cancel, done := serve()
	client := NewUnixClientTransport()
	var err error
	for i := 0; i < 100; i++ {
		if err = client.Connect(common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 5, RetryCount: 5}); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if _, err = client.Send(context.Background(), 1, []byte("a")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// restart the server, the next requests dial a new connection
	cancel()
	<-done
	tr = NewUnixServerTransport()
	tr.RegisterHandler(func(_ context.Context, _ uint64, req []byte) []byte { return req })
	cancel, done = serve()
	defer func() {
		cancel()
		<-done
	}()

	resp, err := client.Send(context.Background(), 1, []byte("b"))
	if err != nil {
		t.Fatalf("Send after restart failed: %v", err)
	}
	if string(resp) != "b" {
		t.Errorf("Expected b, got %s", resp)
	}
}

func TestSendErrors(t *testing.T) {
	client := NewTCPClientTransport()
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("Expected an error without endpoints")
	}
	if err := client.Connect(common.ClientConfig{Endpoints: []string{"127.0.0.1:1"}, TimeoutSecond: 1}); err == nil {
		t.Errorf("Expected an error for an unreachable endpoint")
	}
	if _, err := client.Send(context.Background(), 1, []byte("x")); err == nil {
		t.Errorf("Expected an error without connections")
	}

	// a handler that never answers in time
	block := make(chan struct{})
	defer close(block)
	tr := NewSocketServerTransport("tcp", DefaultBufferSize, 1)
	tr.RegisterHandler(func(_ context.Context, _ uint64, req []byte) []byte {
		<-block
		return req
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tr.Listen(ctx, common.ServerConfig{Endpoint: "127.0.0.1:0"}) }()
	for tr.Addr() == nil {
		time.Sleep(5 * time.Millisecond)
	}

	if err := client.Connect(common.ClientConfig{Endpoints: []string{tr.Addr().String()}, TimeoutSecond: 5}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer reqCancel()
	if _, err := client.Send(reqCtx, 1, []byte("x")); err == nil {
		t.Errorf("Expected an error once the context is done")
	}
}

func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0xff, 0xff, 0xff, 0xff}
	buf.Write(header)
	if _, _, _, err := readFrame(&buf, nil); err == nil {
		t.Errorf("Expected an error for an oversized frame")
	}
}
