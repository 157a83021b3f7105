// Package memory provides an in-process pubsub broker for single-node use
// and tests.
package memory

import "errors"

var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrPatternSubscribed is returned when a pattern already has a subscriber.
	ErrPatternSubscribed = errors.New("pattern already has a subscriber")
)
