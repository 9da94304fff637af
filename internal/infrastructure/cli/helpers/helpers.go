// Package helpers holds formatting and lookup utilities shared by the CLI
// commands.
package helpers

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doeshing/notegen/internal/domain"
)

// ProviderLookup is the slice of the registry needed to resolve ids.
type ProviderLookup interface {
	IsValidProviderID(id string) bool
	ProviderIDs() []domain.ProviderID
}

// ParseProviderID normalizes input and checks it against the registry.
func ParseProviderID(registry ProviderLookup, input string) (domain.ProviderID, error) {
	id := strings.ToLower(strings.TrimSpace(input))
	if !registry.IsValidProviderID(id) {
		known := make([]string, 0, len(registry.ProviderIDs()))
		for _, p := range registry.ProviderIDs() {
			known = append(known, string(p))
		}
		return "", fmt.Errorf("%w %q (known: %s)", domain.ErrUnknownProvider, input, strings.Join(known, ", "))
	}
	return domain.ProviderID(id), nil
}

// Preview flattens s onto one line and cuts it to max runes.
func Preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// StatusLabel renders an empty (pending) status readably.
func StatusLabel(status domain.HistoryStatus) string {
	if status == domain.StatusPending {
		return "pending"
	}
	return string(status)
}
