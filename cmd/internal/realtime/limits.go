package realtime

import "time"

const (
	// Subscribers are not expected to talk; anything larger than a control-ish
	// frame is a protocol abuse.
	maxFrameBytes = 4 << 10

	defaultSendQueueSize = 32
	minSendQueueSize     = 4

	defaultWriteTimeout = 5 * time.Second
	closeGrace          = 1 * time.Second

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3

	// Inbound frames per window before the connection is closed.
	rateLimitEvents = 20
	rateLimitWindow = 10 * time.Second
)
