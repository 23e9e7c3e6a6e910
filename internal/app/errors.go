package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrMissingDependency = errors.New("missing service dependency")
	ErrQueueUnavailable  = errors.New("command queue not configured")
	ErrHandleNotFound    = errors.New("handle not on the leaderboard")
)
