package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	dErrors "matchcore/pkg/domain-errors"
)

const (
	maxUserIDLength = 128
	maxRunIDLength  = 64
)

// ParseUserID validates an opaque user identifier supplied by the profile store
// or a caller. Surrounding whitespace is trimmed.
//
// Errors: CodeInvalidInput when empty, too long, or containing control characters.
func ParseUserID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	if len(s) > maxUserIDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "user id must be at most %d bytes", maxUserIDLength)
	}
	for _, r := range s {
		if unicode.IsControl(r) || r == '|' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "user id contains invalid characters")
		}
	}
	return s, nil
}

// ParseRunID validates a caller-supplied run id. Run ids are idempotency keys
// and end up in log lines and storage keys, so the alphabet is restricted.
//
// Errors: CodeInvalidInput when empty, too long, or using characters outside
// [A-Za-z0-9_.:-].
func ParseRunID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "run id cannot be empty")
	}
	if len(s) > maxRunIDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "run id must be at most %d characters", maxRunIDLength)
	}
	for _, r := range s {
		if !isRunIDRune(r) {
			return "", dErrors.Newf(dErrors.CodeInvalidInput, "run id contains invalid character %q", r)
		}
	}
	return s, nil
}

func isRunIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.' || r == ':':
		return true
	}
	return false
}

// NewRunID generates a run id of the form run_<unix-ms>_<8 hex>.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("run_%d_%s", now.UnixMilli(), suffix)
}
