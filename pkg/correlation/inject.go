// Package correlation tags workflow inputs with a unique run identifier.
// The dispatch API returns no reference to the run it schedules, so the
// identifier is what later ties a dispatch to its run.
package correlation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Key is the workflow input carrying the correlation ID.
const Key = "run_unique_id"

var ErrInvalidInput = errors.New("invalid workflow input")

// Inject returns input with a fresh UUIDv4 under Key, together with the
// ID. Input already carrying a Key is returned unchanged.
func Inject(input []byte) ([]byte, string, error) {
	obj, err := parseObject(input)
	if err != nil {
		return nil, "", err
	}

	if raw, ok := obj[Key]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			return nil, "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidInput, Key)
		}
		return input, id, nil
	}

	id := uuid.NewString()
	obj[Key], err = json.Marshal(id)
	if err != nil {
		return nil, "", err
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, "", fmt.Errorf("marshal workflow input: %w", err)
	}
	return out, id, nil
}

// Inputs converts a workflow payload to dispatch inputs. Workflow inputs
// are strings, so string values are passed through and anything else is
// sent as its JSON text.
func Inputs(payload []byte) (map[string]string, error) {
	obj, err := parseObject(payload)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]string, len(obj))
	for k, raw := range obj {
		var s string
		if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
			inputs[k] = s
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidInput, k, err)
		}
		inputs[k] = compact.String()
	}
	return inputs, nil
}

func parseObject(input []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(input, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidInput)
	}
	return obj, nil
}
