package agentstate

import "errors"

var (
	ErrChoicesWithoutQuestion  = errors.New("agentstate: choices present on a non-UserQuestion approval")
	ErrCursorOutOfRange        = errors.New("agentstate: cursor_position out of [1, len(choices)]")
	ErrMultiSelectNeedsChoices = errors.New("agentstate: multi_select UserQuestion needs at least two choices")
)
