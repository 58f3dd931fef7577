package util

import (
	"encoding/json"
)

// SerializeToJSONString serializes the given struct to a JSON string.
func SerializeToJSONString(v interface{}) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}
