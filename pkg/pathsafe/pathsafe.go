// Package pathsafe validates strings that originate from network input
// before they become filesystem paths or process arguments.
//
// Only ASCII letters, digits, '/', '.', '_' and '-' are accepted. A single
// byte outside that set rejects the whole input; nothing is stripped or
// rewritten.
package pathsafe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafeInput is the sentinel matched by every rejection.
var ErrUnsafeInput = errors.New("unsafe path input")

// UnsafeInputError describes the first offending byte.
type UnsafeInputError struct {
	Input  string
	Offset int
	Byte   byte
}

func (e *UnsafeInputError) Error() string {
	return fmt.Sprintf("unsafe path input %q: byte %q at offset %d", e.Input, e.Byte, e.Offset)
}

// Is lets errors.Is(err, ErrUnsafeInput) match.
func (e *UnsafeInputError) Is(target error) bool {
	return target == ErrUnsafeInput
}

// ValidatedPath is a string that passed Sanitize.
type ValidatedPath string

// String returns the path.
func (p ValidatedPath) String() string { return string(p) }

func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '/', c == '.', c == '_', c == '-':
		return true
	}
	return false
}

// Sanitize returns s unchanged when every byte is in the allow-list.
func Sanitize(s string) (ValidatedPath, error) {
	for i := 0; i < len(s); i++ {
		if !allowed(s[i]) {
			return "", &UnsafeInputError{Input: s, Offset: i, Byte: s[i]}
		}
	}
	return ValidatedPath(s), nil
}

// ErrEscapesRoot is returned by Join when rel would leave base.
var ErrEscapesRoot = errors.New("path escapes root")

// Join sanitizes rel and joins it under base, refusing results that climb
// out of base through ".." segments. base itself is trusted configuration.
func Join(base, rel string) (ValidatedPath, error) {
	if _, err := Sanitize(rel); err != nil {
		return "", err
	}

	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, rel)

	r, err := filepath.Rel(cleanBase, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q under %q", ErrEscapesRoot, rel, base)
	}
	return ValidatedPath(joined), nil
}
