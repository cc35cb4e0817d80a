// Package handler defines the units deployed inside an application and the
// request/response model they exchange.
//
// A Handler terminates a request. Interceptors run before it in pattern
// order and receive a Chain continuation:
//
//	func (a *auth) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
//		if req.Session.Attr("user") == nil {
//			resp.Redirect("/login")
//			return nil // handler never runs
//		}
//		return chain.Next(req, resp)
//	}
//
// Units may also implement Initializer and Destroyer. Listener units are
// notified when their application starts and stops.
package handler
