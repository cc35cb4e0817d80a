package webapp

import (
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/appserver/core/handler"
)

// poolEntry constructs one handler instance exactly once.
type poolEntry struct {
	once  sync.Once
	h     handler.Handler
	err   error
	built atomic.Bool
}

// pooled returns the single instance for unit, constructing it on first use.
// Concurrent first calls share one construction. A failed construction is
// dropped so a later request retries.
func (a *Application) pooled(unit string, build func() (handler.Handler, error)) (handler.Handler, error) {
	v, _ := a.pool.LoadOrStore(unit, &poolEntry{})
	e := v.(*poolEntry)
	e.once.Do(func() {
		e.h, e.err = build()
		if e.err == nil {
			e.built.Store(true)
		}
	})
	if e.err != nil {
		a.pool.CompareAndDelete(unit, e)
		return nil, e.err
	}
	return e.h, nil
}

// destroyPool runs Destroy on every constructed instance and empties the pool.
func (a *Application) destroyPool() {
	a.pool.Range(func(k, v any) bool {
		e := v.(*poolEntry)
		if e.built.Load() {
			if d, ok := e.h.(handler.Destroyer); ok {
				d.Destroy()
			}
		}
		a.pool.Delete(k)
		return true
	})
}

// PoolSize returns the number of constructed handler instances.
func (a *Application) PoolSize() int {
	n := 0
	a.pool.Range(func(_, v any) bool {
		if v.(*poolEntry).built.Load() {
			n++
		}
		return true
	})
	return n
}
