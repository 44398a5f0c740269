package common

import "sync/atomic"

// Global state shared across run modes
var (
	Quiet    bool
	Draining atomic.Bool // Set when SIGTERM is received in daemon mode
)
