package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/writing-studio/studio/internal/store"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnknownKind        = errors.New("unknown generation kind")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGenerationFailed   = errors.New("generation failed")
)

const (
	maxPromptLength   = 2000
	maxQueryLength    = 500
	maxShortField     = 50
	maxNameLength     = 100
	maxLongField      = 1000
	maxSectionLength  = 5000
	maxCharacters     = 50
	maxQueryLimit     = 20
	maxGenres         = 10
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func maxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return invalidf("%s must be at most %d characters", field, max)
	}
	return nil
}

// ParseKind accepts both the URL form ("story-idea") and the stored form
// ("story_idea").
func ParseKind(s string) (store.GenerationKind, error) {
	kind := store.GenerationKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return kind, nil
}

func validExternalID(id string) bool {
	if len(id) < 3 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == '@':
		default:
			return false
		}
	}
	return true
}
