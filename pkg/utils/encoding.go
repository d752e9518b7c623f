package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyPayload = errors.New("payload is empty")

// Encode encodes any value to JSON and then to base64
func Encode[T any](value T) (string, error) {
	bytes, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}

	return base64.StdEncoding.EncodeToString(bytes), nil
}

// Decode decodes a base64 encoded JSON string to the specified type
func Decode[T any](encoded string) (T, error) {
	var result T

	if encoded == "" {
		return result, ErrEmptyPayload
	}

	bytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return result, fmt.Errorf("failed to decode base64: %w", err)
	}

	return DecodeJSON[T](bytes)
}

// EncodeJSON encodes any value to JSON bytes
func EncodeJSON[T any](value T) ([]byte, error) {
	return json.Marshal(value)
}

// DecodeJSON decodes JSON bytes to the specified type
func DecodeJSON[T any](data []byte) (T, error) {
	var result T
	if len(data) == 0 {
		return result, ErrEmptyPayload
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON (%d bytes): %w", len(data), err)
	}

	return result, nil
}
