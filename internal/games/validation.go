package games

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"gamestore/internal/catalog"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether s looks like an email address.
func ValidateEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidateGame returns a human-readable message for every problem with g.
// An empty result means g is valid.
func ValidateGame(g catalog.Game) []string {
	var errs []string

	title := strings.TrimSpace(g.TitleEN)
	if utf8.RuneCountInString(title) < 2 {
		errs = append(errs, "English title must be at least 2 characters")
	}
	if utf8.RuneCountInString(g.TitleEN) > 100 {
		errs = append(errs, "Title must be less than 100 characters")
	}

	if g.IframeURL != "" && !IsValidURL(g.IframeURL) {
		errs = append(errs, "Invalid game URL format")
	}

	if g.Category != "" && !IsKnownCategory(g.Category) {
		errs = append(errs, "Invalid game category")
	}

	if g.PopularityScore < 0 {
		errs = append(errs, "Popularity score must be a non-negative integer")
	}

	return errs
}

// IsValidURL accepts absolute http and https URLs only.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once
)

// Sanitize strips all markup from s and collapses runs of whitespace.
func Sanitize(s string) string {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.Join(strings.Fields(strictPolicy.Sanitize(s)), " ")
}
