// Package parse classifies raw model text into exactly one typed action.
// Parsing is a pure function of the input text plus the fixed specialist set:
// no hidden state, no side effects, same input always yields the same action.
package parse

import "fmt"

// Action is the parsed intent of one model response. Exactly one concrete
// type is produced per response: CodeAction, FinalAnswerAction, or
// DelegationAction.
type Action interface {
	isAction()
}

// CodeAction carries model-generated code to be executed in the sandbox.
type CodeAction struct {
	// Code is the block contents, stripped of fence syntax.
	Code string

	// Analysis is the model's own progress note, when it supplied one
	// alongside the code (JSON response form).
	Analysis string
}

func (CodeAction) isAction() {}

// FinalAnswerAction terminates the session with the given text verbatim.
type FinalAnswerAction struct {
	Text string
}

func (FinalAnswerAction) isAction() {}

// DelegationAction routes an instruction to a named specialist model.
type DelegationAction struct {
	Specialist  string
	Instruction string
}

func (DelegationAction) isAction() {}

// Error reports text that could not be resolved to any action: structurally
// broken responses, an unclosed fence, or an unknown specialist name.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unparsable model response: %s", e.Reason)
}
