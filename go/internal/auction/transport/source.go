package transport

import "context"

// Source delivers raw event frames pushed by the auction server, in the order
// they were received
type Source interface {
	// Run connects and pumps frames until ctx is cancelled. Frames is closed
	// when Run returns.
	Run(ctx context.Context) error
	Frames() <-chan []byte
	// Reconnected fires after a lost connection was re-established. Events
	// may have been missed in between.
	Reconnected() <-chan struct{}
}
