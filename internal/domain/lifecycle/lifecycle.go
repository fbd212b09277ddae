// Package lifecycle holds shared timing constants for component start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds every start/stop hook (store pings, index creation, HTTP shutdown).
const DefaultTimeout = 10 * time.Second
