// Package descriptor defines the YAML deployment descriptors: the server
// descriptor (hosts, contexts, connectors), process-wide web defaults
// (mime table, welcome files, session timeout, page extensions) and the
// per-application descriptor (handlers, interceptors, listeners).
package descriptor
