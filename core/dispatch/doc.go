// Package dispatch runs one request through its interceptors and handler.
//
// Each interceptor receives the Chain as its continuation. Calling
// chain.Next passes control on; returning without it ends the request with
// whatever the interceptor put in the response.
package dispatch
