// Package sessionid generates identifiers for one recorder process lifetime.
// Emitters stamp it on every mirrored event so logs from restarts and
// parallel recorders can be told apart.
package sessionid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxLength matches the length of a UUID string
	MaxLength = 36
	// SuffixLength is the number of random hex characters appended to a named session
	SuffixLength = 8
	// MaxNameLength leaves room for "-" and the random suffix
	MaxNameLength = MaxLength - SuffixLength - 1
)

var (
	invalidCharsRe = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRunRe    = regexp.MustCompile(`-+`)
)

// New returns "{name}-{8 hex chars}" for a usable name, or a random UUID otherwise.
// The name is reduced to [a-zA-Z0-9-] with spaces turned into hyphens.
func New(name string) string {
	clean := Sanitize(name)
	if clean == "" {
		return uuid.NewString()
	}
	return clean + "-" + randomSuffix()
}

// Sanitize reduces name to [a-zA-Z0-9-], collapses hyphen runs and caps the length
func Sanitize(name string) string {
	clean := strings.ReplaceAll(name, " ", "-")
	clean = invalidCharsRe.ReplaceAllString(clean, "")
	clean = hyphenRunRe.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-")

	if len(clean) > MaxNameLength {
		clean = strings.TrimRight(clean[:MaxNameLength], "-")
	}
	return clean
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:SuffixLength]
}
