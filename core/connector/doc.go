// Package connector accepts TCP connections on one port and hands each to
// a worker pool, which runs the protocol processor with the connector's
// compression policy.
//
//	c := connector.New(desc, proc,
//		connector.WithPoolConfig(poolCfg),
//		connector.WithLogger(log),
//	)
//	if err := c.Start(ctx); err != nil {
//		return err // port in use
//	}
//	defer c.Stop(shutdownCtx)
//
// Accept failures are retried with a backoff from 5ms doubling to 1s and
// never end the loop. Connections the pool refuses are closed immediately.
package connector
