package dto

import (
	"fmt"
	"strconv"
	"strings"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ParseLimit reads an optional limit query parameter. Empty means fallback.
func ParseLimit(raw string, fallback, max int) (int, []ValidationError) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, []ValidationError{{Field: "limit", Message: "must be an integer"}}
	}
	if n < 1 || n > max {
		return 0, []ValidationError{{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", max)}}
	}
	return n, nil
}

// ParseUserID reads a positive user id path parameter.
func ParseUserID(raw string) (int64, []ValidationError) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, []ValidationError{{Field: "id", Message: "must be a positive integer"}}
	}
	return id, nil
}
