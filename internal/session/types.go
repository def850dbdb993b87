package session

import (
	"errors"
	"time"

	"analyst/internal/parse"
	"analyst/internal/sandbox"
)

var (
	// ErrRoundsExhausted reports that the model never produced a final
	// answer within the round budget.
	ErrRoundsExhausted = errors.New("round budget exhausted without a final answer")

	// ErrParseFailures reports too many consecutive unparsable responses.
	ErrParseFailures = errors.New("too many consecutive unparsable responses")

	// ErrSandboxFailure reports that the execution infrastructure itself
	// broke, as opposed to the executed code failing.
	ErrSandboxFailure = errors.New("sandbox infrastructure failure")

	// ErrBudgetExceeded reports that the session hit its wall-clock budget.
	ErrBudgetExceeded = errors.New("session time budget exceeded")
)

// Round records one loop iteration: what the model said, what the engine
// did about it, and what was fed back.
type Round struct {
	Index    int
	Raw      string
	Action   parse.Action
	Outcome  *sandbox.Outcome
	Feedback string
}

// Result is the terminal record of a session.
type Result struct {
	SessionID string
	Answer    string
	Rounds    []Round
	Artifacts []sandbox.Artifact
	Duration  time.Duration
}
