// Package processor implements the per-connection HTTP/1.1 exchange: parse
// one request, route it to an application, attach the session, run the
// dispatch chain and frame exactly one response before closing the
// connection.
//
// Outcomes map to the wire as follows: a redirect becomes 302 with
// Location, handler.ErrNotFound (or an empty 404) becomes the not-found
// page naming the path, any other error or panic becomes the 500 page with
// a shortened message, the error text and a capped trace. Bodies are
// gzipped when the connector's Compression policy applies.
package processor
