// Package middleware provides interceptor units for deployed applications.
//
// Register defines every built-in interceptor in a scope, after which an
// application descriptor can map them by unit id:
//
//	if err := middleware.Register(scope.Process()); err != nil {
//		return err
//	}
//
//	# WEB-INF/web.yaml
//	interceptors:
//	  - name: reqid
//	    unit: middleware.requestid
//	    patterns: ["/*"]
//	  - name: access-log
//	    unit: middleware.logging
//	    patterns: ["/*"]
//	    init_params: {slow_threshold: 500ms}
//	  - name: admin-auth
//	    unit: middleware.basicauth
//	    patterns: ["/admin"]
//	    init_params: {realm: admin, users: "ops:secret"}
//
// Interceptors run in declaration order. Each one is configured from its
// init_params when the application deploys; an invalid parameter fails the
// deployment.
package middleware
