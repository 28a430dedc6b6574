package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// ErrInvalidArguments is returned when tool-call argument text cannot be
// turned into a JSON object, even after repair.
var ErrInvalidArguments = errors.New("tool arguments are not a JSON object")

// ParseToolArguments turns the argument text of a tool call into a JSON
// object. Empty text becomes {}. Text that is not valid JSON, such as a
// truncated object or one with trailing commas, is repaired first; anything
// that still is not an object fails.
func ParseToolArguments(text string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if json.Valid(trimmed) {
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, TruncateString(text, 100))
		}
		return json.RawMessage(trimmed), nil
	}

	repaired, err := jsonrepair.JSONRepair(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w: repair failed: %v", ErrInvalidArguments, err)
	}
	repairedBytes := bytes.TrimSpace([]byte(repaired))
	if len(repairedBytes) == 0 || repairedBytes[0] != '{' || !json.Valid(repairedBytes) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, TruncateString(text, 100))
	}
	return json.RawMessage(repairedBytes), nil
}
