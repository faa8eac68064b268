package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArguments decodes a tool call's arguments into an object. It accepts
// JSON text in any of its usual carriers as well as already decoded maps.
// Anything that is not a JSON object degrades to an empty map.
func ParseArguments(raw any) map[string]any {
	var data []byte
	switch typed := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return typed
	case string:
		data = []byte(typed)
	case []byte:
		data = typed
	case json.RawMessage:
		data = typed
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return map[string]any{}
		}
		data = encoded
	}

	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}
	}

	var arguments map[string]any
	if err := json.Unmarshal(data, &arguments); err != nil || arguments == nil {
		logger.Debug("failed to parse tool arguments", "error", err, "raw", string(data))
		return map[string]any{}
	}
	return arguments
}

// stringArgument returns a non-empty string argument or fallback.
func stringArgument(arguments map[string]any, key, fallback string) string {
	value, ok := arguments[key]
	if !ok || value == nil {
		return fallback
	}
	text, ok := value.(string)
	if !ok {
		text = fmt.Sprint(value)
	}
	if text == "" {
		return fallback
	}
	return text
}
