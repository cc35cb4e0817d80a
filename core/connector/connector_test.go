package connector_test

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/connector"
	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/processor"
	"github.com/dmitrymomot/appserver/core/workerpool"
)

type connFunc func(ctx context.Context, conn net.Conn, comp processor.Compression)

func (f connFunc) ServeConn(ctx context.Context, conn net.Conn, comp processor.Compression) {
	f(ctx, conn, comp)
}

func start(t *testing.T, h connector.ConnHandler, opts ...connector.Option) *connector.Connector {
	t.Helper()
	opts = append([]connector.Option{connector.WithBindAddress("127.0.0.1")}, opts...)
	c := connector.New(descriptor.Connector{Port: 0, Compression: "on", CompressionMinSize: 64}, h, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func TestConnectorServesConnections(t *testing.T) {
	t.Parallel()

	var served atomic.Int32
	c := start(t, connFunc(func(_ context.Context, conn net.Conn, comp processor.Compression) {
		defer conn.Close()
		served.Add(1)
		if comp.Enabled && comp.MinSize == 64 {
			_, _ = io.WriteString(conn, "ok")
		}
	}))

	for i := 0; i < 5; i++ {
		conn, err := net.Dial("tcp", c.Addr().String())
		require.NoError(t, err)
		out, err := io.ReadAll(conn)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(out))
		conn.Close()
	}
	assert.Equal(t, int32(5), served.Load())
}

func TestConnectorBindFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	c := connector.New(descriptor.Connector{Port: port}, connFunc(func(context.Context, net.Conn, processor.Compression) {}),
		connector.WithBindAddress("127.0.0.1"))
	err = c.Start(context.Background())
	require.ErrorIs(t, err, connector.ErrBind)
	assert.Nil(t, c.Addr())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestConnectorStartTwice(t *testing.T) {
	t.Parallel()

	c := start(t, connFunc(func(_ context.Context, conn net.Conn, _ processor.Compression) { conn.Close() }))
	assert.ErrorIs(t, c.Start(context.Background()), connector.ErrAlreadyStarted)
}

func TestConnectorClosesRejectedConnections(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	c := start(t, connFunc(func(_ context.Context, conn net.Conn, _ processor.Compression) {
		defer conn.Close()
		started <- struct{}{}
		<-release
	}), connector.WithPoolConfig(workerpool.Config{
		CoreWorkers: 1,
		MaxWorkers:  1,
		QueueSize:   1,
		Policy:      workerpool.PolicyReject,
	}))
	defer close(release)

	busy, err := net.Dial("tcp", c.Addr().String())
	require.NoError(t, err)
	defer busy.Close()
	<-started

	queued, err := net.Dial("tcp", c.Addr().String())
	require.NoError(t, err)
	defer queued.Close()

	rejected, err := net.Dial("tcp", c.Addr().String())
	require.NoError(t, err)
	defer rejected.Close()

	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := rejected.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	assert.Eventually(t, func() bool { return c.PoolStats().Rejected == 1 }, time.Second, 10*time.Millisecond)
}

func TestConnectorStopIsIdempotentBeforeStart(t *testing.T) {
	t.Parallel()

	c := connector.New(descriptor.Connector{Port: 0}, connFunc(func(context.Context, net.Conn, processor.Compression) {}))
	assert.NoError(t, c.Stop(context.Background()))
	assert.Nil(t, c.Addr())
	assert.Zero(t, c.PoolStats().Workers)
}

func TestConnectorStopDrainsInFlight(t *testing.T) {
	t.Parallel()

	var finished atomic.Bool
	started := make(chan struct{})
	c := connector.New(descriptor.Connector{Port: 0}, connFunc(func(_ context.Context, conn net.Conn, _ processor.Compression) {
		defer conn.Close()
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	}), connector.WithBindAddress("127.0.0.1"))
	require.NoError(t, c.Start(context.Background()))

	conn, err := net.Dial("tcp", c.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.True(t, finished.Load())
}
