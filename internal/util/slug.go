package util

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var (
	slugStripRe  = regexp.MustCompile(`[^a-z0-9-]+`)
	multiHyphens = regexp.MustCompile(`-{2,}`)
)

// Slugify — URL-слаг из произвольной строки: транслитерация,
// нижний регистр, дефисы вместо пробелов, прочий мусор вырезается.
func Slugify(s string) string {
	out := unidecode.Unidecode(s)
	out = strings.ToLower(strings.TrimSpace(out))
	out = strings.ReplaceAll(out, " ", "-")
	out = slugStripRe.ReplaceAllString(out, "")
	out = multiHyphens.ReplaceAllString(out, "-")
	return strings.Trim(out, "-")
}

// IsValidSlug — только [a-z0-9-], без дефисов по краям и двойных дефисов.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	return !strings.Contains(s, "--")
}
