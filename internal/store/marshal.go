package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON converts v to JSON TEXT for storage.
// Map keys are sorted by encoding/json; HTML escaping is disabled so stored
// text matches what the API returns.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalTags stores nil and empty tag lists as "[]".
func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := marshalJSON(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return data, nil
}

// marshalMetadata stores nil and empty metadata as "{}".
func marshalMetadata(md map[string]any) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	data, err := marshalJSON(md)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// unmarshalTags parses tags TEXT. An empty list decodes to nil so rows
// round-trip unchanged.
func unmarshalTags(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

// unmarshalMetadata parses metadata TEXT. "{}" decodes to nil.
func unmarshalMetadata(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(data), &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return md, nil
}
