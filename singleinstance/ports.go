package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49620
	defaultPortEnd   = 49670
)

// portRange returns the configured TCP port range. Environment variables
// SINGLEINSTANCE_PORT_START and SINGLEINSTANCE_PORT_END (integers,
// inclusive) override the defaults; values are clamped to [1024, 65535].
func portRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("SINGLEINSTANCE_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("SINGLEINSTANCE_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

// PortRange exposes the effective range for pre-flight checks and logging.
func PortRange() (int, int) { return portRange() }
