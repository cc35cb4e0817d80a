package processor

import "github.com/dmitrymomot/appserver/core/host"

// EngineRouter routes through an engine's virtual hosts.
func EngineRouter(e *host.Engine) Router {
	return RouterFunc(func(hostHeader, uri string) Application {
		_, app := e.Resolve(hostHeader, uri)
		if app == nil {
			// avoid a typed nil in the interface
			return nil
		}
		return app
	})
}
