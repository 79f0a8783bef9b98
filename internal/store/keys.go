package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// LatestKey names the cache slot for the most recent snapshot of a dataset.
// The dataset id is hashed so key length stays bounded and catalog changes
// cannot produce unsafe key characters.
func LatestKey(dataset string) string {
	return fmt.Sprintf("dengue:%s:latest:d=%016x", sanitize(dataset), xxhash.Sum64String(dataset))
}

// GenerationKey names the slot for one historical snapshot generation.
func GenerationKey(dataset string, gen uint64) string {
	return fmt.Sprintf("dengue:%s:gen:%d:d=%016x", sanitize(dataset), gen, xxhash.Sum64String(dataset))
}

// RiskKey names the slot for the risk surface of one snapshot generation.
func RiskKey(gen uint64) string {
	return fmt.Sprintf("dengue:risk:gen:%d", gen)
}

const maxDatasetLen = 48

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	out := b.String()
	if len(out) > maxDatasetLen {
		out = out[:maxDatasetLen]
	}
	return out
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
