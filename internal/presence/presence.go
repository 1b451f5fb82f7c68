// Package presence implements the ephemeral collaboration broadcasters:
// pointer cursors and editing intent. Both follow the same contract -
// insert-or-replace remote state by user ID on receipt, remove on explicit
// leave/stop or on stale-timer expiry - so duplicated or re-ordered
// deliveries are harmless. Removal is only ever driven by explicit messages
// or by the absence of timely ones; no sequence numbers are needed.
package presence

import "time"

// publishTimeout bounds each fire-and-forget presence publish.
const publishTimeout = 5 * time.Second

const (
	// DefaultThrottle is the minimum spacing between outbound cursor messages.
	DefaultThrottle = 30 * time.Millisecond

	// DefaultHeartbeat is how often an in-progress edit is re-announced.
	DefaultHeartbeat = 10 * time.Second

	// DefaultStaleAfter is how long a remote entry survives without a
	// refreshing message before observers drop it.
	DefaultStaleAfter = 15 * time.Second
)
