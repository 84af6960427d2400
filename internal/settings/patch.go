package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sales_portal_backend/platform/apperr"
)

// ApplyPatch sets one dotted-path field (e.g. "scoringWeights.budgetHigh") on
// a copy of current and validates the result. The returned Settings is only
// usable when err is nil; current is never mutated.
//
// The patch goes through the JSON representation: the struct is flattened to
// a map, the path is walked and set, and the result is decoded back strictly.
// Unknown paths and type mismatches both fail the strict decode, so a typo in
// the path can never silently add a field.
func ApplyPatch(current Settings, path string, value json.RawMessage) (Settings, error) {
	segments := strings.Split(strings.TrimSpace(path), ".")
	if len(segments) == 0 || segments[0] == "" {
		return Settings{}, apperr.Configuration("patch path must not be empty")
	}
	for _, segment := range segments {
		if segment == "" {
			return Settings{}, apperr.Configuration(fmt.Sprintf("patch path %q has an empty segment", path))
		}
	}
	if len(value) == 0 {
		return Settings{}, apperr.Configuration("patch value must not be empty")
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "encode settings", err)
	}

	var tree map[string]interface{}
	if err := json.Unmarshal(encoded, &tree); err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "decode settings", err)
	}

	node := tree
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]interface{})
		if !ok {
			return Settings{}, apperr.Configuration(fmt.Sprintf("unknown settings path %q", path))
		}
		node = child
	}

	leaf := segments[len(segments)-1]
	if _, ok := node[leaf]; !ok {
		return Settings{}, apperr.Configuration(fmt.Sprintf("unknown settings path %q", path))
	}

	var parsed interface{}
	if err := json.Unmarshal(value, &parsed); err != nil {
		return Settings{}, apperr.Configuration(fmt.Sprintf("invalid value for %q", path))
	}
	node[leaf] = parsed

	patched, err := json.Marshal(tree)
	if err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "encode patched settings", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(patched))
	decoder.DisallowUnknownFields()

	var next Settings
	if err := decoder.Decode(&next); err != nil {
		return Settings{}, apperr.Configuration(fmt.Sprintf("invalid value for %q", path))
	}

	if err := next.Validate(); err != nil {
		return Settings{}, err
	}

	return next, nil
}
