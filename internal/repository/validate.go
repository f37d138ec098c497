package repository

import (
	"strings"

	"domore/internal/models/task"
)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return newValidationError("title", "must not be empty")
	}
	return nil
}

func validatePriority(p task.Priority) error {
	if !p.Valid() {
		return newValidationError("priority", "must be between 0 and 3")
	}
	return nil
}
