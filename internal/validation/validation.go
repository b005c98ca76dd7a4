// Package validation provides input validation utilities for untrusted tool
// and CLI inputs: record ids, display names, calendar dates, and file paths.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Common validation errors.
var (
	ErrEmptyInput        = errors.New("input cannot be empty")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidSlot       = errors.New("invalid meal slot")
	ErrInvalidServings   = errors.New("invalid servings")
	ErrInvalidProfile    = errors.New("invalid profile name")
	ErrPathTraversal     = errors.New("path traversal detected")
	ErrInvalidPath       = errors.New("invalid path")
	ErrControlCharacters = errors.New("control characters detected")
)

// Compiled regex patterns for validation (compiled once for performance).
var (
	// idRegex matches generated record ids: UUIDs and test stand-ins
	// Examples: "2f1c9a6e-...", "r-1"
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// profileRegex matches credential profile section names
	// Examples: "default", "family", "work_2"
	profileRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	// dateRegex matches the YYYY-MM-DD wire shape before the calendar check
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// safeTextRegex rejects control characters in single-line fields
	safeTextRegex = regexp.MustCompile(`^[^\x00-\x1f\x7f]*$`)
)

// ValidateID validates a record id (recipe, plan, list, or item).
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyInput
	}

	if len(id) > 64 {
		return fmt.Errorf("%w: id too long (max 64 characters)", ErrInvalidID)
	}

	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidID, id)
	}

	return nil
}

// ValidateName validates a single-line display name such as a recipe title,
// grocery list name, or tag.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrInvalidName)
	}

	if !safeTextRegex.MatchString(name) {
		return fmt.Errorf("%w: name contains control characters", ErrControlCharacters)
	}

	return nil
}

// ValidateDate validates a calendar date in YYYY-MM-DD form.
func ValidateDate(date string) error {
	if date == "" {
		return ErrEmptyInput
	}

	if !dateRegex.MatchString(date) {
		return fmt.Errorf("%w: %q is not in YYYY-MM-DD form", ErrInvalidDate, date)
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, date)
	}

	return nil
}

// ValidateSlot validates a meal slot name.
func ValidateSlot(slot string) error {
	switch slot {
	case "":
		return ErrEmptyInput
	case "breakfast", "lunch", "dinner", "snack":
		return nil
	default:
		return fmt.Errorf("%w: %q (use breakfast, lunch, dinner, or snack)", ErrInvalidSlot, slot)
	}
}

// ValidateServings validates a servings count. Zero is allowed and means
// "use the recipe's default".
func ValidateServings(servings int) error {
	if servings < 0 {
		return fmt.Errorf("%w: must not be negative", ErrInvalidServings)
	}

	if servings > 100 {
		return fmt.Errorf("%w: %d is out of range (max 100)", ErrInvalidServings, servings)
	}

	return nil
}

// ValidateProfileName validates a credential profile name.
func ValidateProfileName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 64 {
		return fmt.Errorf("%w: profile name too long (max 64 characters)", ErrInvalidProfile)
	}

	if !profileRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidProfile, name)
	}

	return nil
}

// ValidatePath validates a file path and prevents path traversal attacks.
// It ensures the path doesn't escape the intended base directory.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}

	if len(path) > 4096 {
		return fmt.Errorf("%w: path too long (max 4096 characters)", ErrInvalidPath)
	}

	// Check for null bytes
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	// Check for path traversal sequences
	if containsPathTraversal(path) {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrPathTraversal, path)
	}

	return nil
}

// ValidatePathWithBase validates a path is within the expected base directory.
// This is the recommended function for file operations.
func ValidatePathWithBase(path, basePath string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	// Clean both paths before comparing
	cleanPath := filepath.Clean(path)
	cleanBase := filepath.Clean(basePath)

	// Ensure the path is within the base directory
	if !strings.HasPrefix(cleanPath, cleanBase) {
		return fmt.Errorf("%w: path %q escapes base directory %q", ErrPathTraversal, path, basePath)
	}

	return nil
}

// containsPathTraversal checks for common path traversal patterns.
func containsPathTraversal(path string) bool {
	// Normalize the path to catch encoded traversal attempts
	normalized := filepath.Clean(path)

	// Check for ".." sequences in the normalized path
	segments := strings.Split(normalized, string(filepath.Separator))
	for _, seg := range segments {
		if seg == ".." {
			return true
		}
	}

	// Check for URL-encoded traversal
	if strings.Contains(path, "%2e%2e") || strings.Contains(path, "%2E%2E") {
		return true
	}

	return false
}
