package server

import "time"

const (
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxBodySize bounds buffered request bodies.
	DefaultMaxBodySize = 10 << 20 // 10 MB

	// DefaultServerConf and DefaultWebConf are the descriptor locations.
	DefaultServerConf = "conf/server.yaml"
	DefaultWebConf    = "conf/web.yaml"

	// DefaultWorkDir holds compiled page artifacts.
	DefaultWorkDir = "work"
)
