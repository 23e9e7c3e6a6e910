package model

import (
	"fmt"
	"strings"
	"time"
)

// CommandKind is a pipeline operation that can be requested.
type CommandKind int

const (
	// CommandScoreAndRank fetches metrics, builds and stores a snapshot.
	CommandScoreAndRank CommandKind = iota + 1
	// CommandSignAndDistribute signs the latest snapshot and pays the top wallets.
	CommandSignAndDistribute
	// CommandRunCycle runs ScoreAndRank then SignAndDistribute on the new snapshot.
	CommandRunCycle
)

var commandNames = map[CommandKind]string{
	CommandScoreAndRank:      "score_and_rank",
	CommandSignAndDistribute: "sign_and_distribute",
	CommandRunCycle:          "run_cycle",
}

func (k CommandKind) String() string {
	if n, ok := commandNames[k]; ok {
		return n
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Valid reports whether k is a known command.
func (k CommandKind) Valid() bool {
	_, ok := commandNames[k]
	return ok
}

// ParseCommandKind accepts the snake_case name of a command.
func ParseCommandKind(s string) (CommandKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range commandNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k CommandKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CommandKind) UnmarshalText(b []byte) error {
	parsed, err := ParseCommandKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Command is a queued request to run a pipeline operation.
type Command struct {
	ID          string      `json:"id"`
	Kind        CommandKind `json:"kind"`
	Source      string      `json:"source"`
	SubmittedAt time.Time   `json:"submitted_at"`
}
