package queue

import "errors"

// Sentinel errors returned by Enqueue.
var (
	ErrClosed = errors.New("command queue closed")
	ErrFull   = errors.New("command queue full")
)
