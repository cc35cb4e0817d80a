// Package workerpool provides the bounded goroutine pool connections are
// served on.
//
//	pool := workerpool.New(workerpool.Config{
//		CoreWorkers: 20,
//		MaxWorkers:  100,
//		QueueSize:   1000,
//		KeepAlive:   time.Minute,
//		Policy:      workerpool.PolicyBlock,
//	}, workerpool.WithLogger(log))
//	defer pool.Shutdown(ctx)
//
//	err := pool.Submit(ctx, func() { serve(conn) })
//
// A panicking task is logged and the worker keeps running.
package workerpool
