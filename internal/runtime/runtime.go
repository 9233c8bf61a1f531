// Package runtime holds the process-wide ambient authority every component
// needs but none should construct for itself: the container's identity
// (for heartbeat ownership and orphan recovery) and an injectable clock
// (so tests never depend on wall time).
package runtime

import (
	"os"
	"time"

	"github.com/google/uuid"
)

// ContainerID identifies this process to the heartbeat/orphan-recovery
// machinery (spec.md §4.7, §4.10). It prefers the hostname Kubernetes/Docker
// assigns a pod (stable across restarts of the same container, unlike a
// random id) and falls back to a generated id when the hostname lookup
// fails.
func ContainerID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

// Clock is injected into every time-sensitive component so tests can
// control the flow of time instead of sleeping.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }
