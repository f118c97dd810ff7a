package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// JSON size limits (in bytes)
const (
	MaxPayloadSize = 256 * 1024 // 256KB - send/invoke payload limit
)

// String length limits
const (
	MaxNameLength     = 128
	MaxCallbackLength = 128
	MaxFileSize       = 16 * 1024 * 1024
)

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// PayloadValidator returns a validator for host to sandbox payloads
func PayloadValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxPayloadSize)
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if size := len(data); size > v.maxSize {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", size, v.maxSize)
	}
	return nil
}

// ValidateJSON validates both size and JSON structure
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	if err := v.ValidateSize(data); err != nil {
		return err
	}
	if !sonic.ConfigStd.Valid(data) {
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

// ValidateJSONString validates a JSON string
func (v *JSONSizeValidator) ValidateJSONString(jsonStr string) error {
	return v.ValidateJSON([]byte(jsonStr))
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateName validates an optional display name
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 0, MaxNameLength, false)
}

// ValidateCallbackName validates a NUI callback name. Any string the UI can
// pass to RegisterNUICallback is accepted as long as it fits the limits.
func ValidateCallbackName(name string) error {
	return ValidateString(name, "callback name", 1, MaxCallbackLength, true)
}

// ValidatePayload checks the size of a host payload. Whether it parses is
// decided by the workspace, which logs the failure to the console.
func ValidatePayload(payload string) error {
	return PayloadValidator().ValidateSize([]byte(payload))
}
