package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the cycle error taxonomy. Wrap them with fmt.Errorf
// and match with errors.Is.
var (
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	ErrUpstream            = errors.New("upstream error")
	ErrPersistence         = errors.New("persistence error")
	ErrSigningFailed       = errors.New("signing failed")
	ErrAnchorFailed        = errors.New("anchor failed")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrInsufficientFunds   = fmt.Errorf("%w: insufficient funds", ErrTransferFailed)
	ErrInvalidRecord       = errors.New("invalid engagement record")
	ErrInvalidSnapshot     = errors.New("invalid leaderboard snapshot")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyLeaderboard    = errors.New("leaderboard has no entries")
	ErrCycleInterrupted    = errors.New("cycle interrupted")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrNoSnapshot          = errors.New("no leaderboard snapshot available")
)
