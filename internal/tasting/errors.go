package tasting

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPhase is returned when a command is not legal in the current phase.
	ErrPhase = errors.New("command not allowed in current phase")
	// ErrRoundOverflow is returned by NextRound once every bottle has been reached.
	ErrRoundOverflow = errors.New("no rounds left")
	// ErrNoTie is returned by StartTieBreaker when the leaders are not tied.
	ErrNoTie = errors.New("scores are not tied")
	// ErrTieUnresolved is returned by FinalScore while the tie-breaker still
	// has more than one leader.
	ErrTieUnresolved = errors.New("tie is not resolved")
	// ErrUnknownCommand is returned by ParseCommand for unrecognized tags.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadPayload is returned by ParseCommand when a payload cannot be decoded.
	ErrBadPayload = errors.New("malformed command payload")
)

func phaseError(cmd Command, p Phase) error {
	return fmt.Errorf("%w: %s during %s", ErrPhase, cmd.Type(), p)
}

// FieldError describes one invalid field of a command payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a command payload breaks a state
// invariant. The state is left untouched.
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Field + ": " + p.Message
	}
	return "invalid command: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ContractViolation is the panic value raised when Reduce receives a command
// it does not know. It means the caller and the machine disagree about the
// command set, so it is never returned as an ordinary error.
type ContractViolation struct {
	Command Command
}

func (c ContractViolation) Error() string {
	return fmt.Sprintf("tasting: unhandled command %T", c.Command)
}
