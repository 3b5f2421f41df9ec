package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/bento/pkg/feed"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// RootFinder is the part of the feed the resolver needs. *feed.Client implements it.
type RootFinder interface {
	Get(ctx context.Context, entryID string) (*feed.Entry, error)
	ScanRoots(ctx context.Context, prefix string) ([]string, error)
}

// ResolveRootID resolves a short prefix of a bento root entry ID to the full ID.
//
// A full UUID is checked for existence and must name a root entry. Anything
// shorter than MinShortIDLength is rejected. Otherwise the prefix must match
// exactly one root.
func ResolveRootID(ctx context.Context, f RootFinder, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		entry, err := f.Get(ctx, shortID)
		if err != nil {
			if feed.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify bento existence: %w", err)
		}
		if !entry.IsRoot() {
			return "", fmt.Errorf("entry %s is a state update, not a bento", shortID)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := f.ScanRoots(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for bento: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no bento matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no bentos found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple bentos matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d bentos", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists up to ten matches for the user.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d bentos:\n", err.ShortID, len(err.Matches))

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if rest := len(err.Matches) - shown; rest > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", rest)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the bento.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var amb *AmbiguousError
	return errors.As(err, &amb)
}
