package tasting

import (
	"encoding/json"
	"fmt"
)

// ParseCommand decodes a wire command. payload may be empty for commands
// that carry no data.
func ParseCommand(tag string, payload json.RawMessage) (Command, error) {
	switch tag {
	case TypeSubmitRound:
		return SubmitRound{}, nil
	case TypeNextRound:
		return NextRound{}, nil
	case TypeFinalReveal:
		return FinalReveal{}, nil
	case TypeFinalScore:
		return FinalScore{}, nil
	case TypeStartTieBreaker:
		return StartTieBreaker{}, nil
	case TypeSetupGame:
		var c SetupGame
		if err := decodePayload(tag, payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeRecordGuess:
		var c RecordGuess
		if err := decodePayload(tag, payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeRecordScores:
		var c RecordScores
		if err := decodePayload(tag, payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, tag)
}

func decodePayload(tag string, payload json.RawMessage, dest any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", ErrBadPayload, tag)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrBadPayload, tag, err)
	}
	return nil
}
