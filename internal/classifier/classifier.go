// Package classifier picks the entries of a metadata map that look like
// AI image-generation provenance.
//
// An entry is included when its normalized tag name is a provenance field
// and the value names a generation tool, the field is a software field, or
// the value is long free text. Independently, any entry whose value looks
// like embedded JSON or a flattened sampler parameter string is included.
// The second rule ignores the tag name and is the main source of false
// positives.
package classifier

import (
	"strings"
	"unicode/utf8"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// Reason explains why an entry was included.
type Reason string

const (
	ReasonKeyword    Reason = "generation keyword"
	ReasonSoftware   Reason = "software field"
	ReasonLongText   Reason = "long free text"
	ReasonJSON       Reason = "embedded JSON"
	ReasonParameters Reason = "sampler parameters"
)

// Classify returns a new map holding the entries of raw that look like
// generation metadata, in raw's order.
func Classify(raw *metadata.Map) *metadata.Map {
	out := metadata.New()
	raw.Range(func(tag, value string) bool {
		if _, ok := Match(tag, value); ok {
			out.Set(tag, value)
		}
		return true
	})
	return out
}

// Match reports whether a single entry is generation metadata and why. The
// provenance-field rule is checked first.
func Match(tag, value string) (Reason, bool) {
	if reason, ok := matchField(tag, value); ok {
		return reason, true
	}
	return matchValue(value)
}

// Normalize strips a namespace prefix up to and including the last '.'.
func Normalize(tag string) string {
	if i := strings.LastIndex(tag, "."); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func matchField(tag, value string) (Reason, bool) {
	name := Normalize(tag)
	if !provenanceTags[name] {
		return "", false
	}
	lower := strings.ToLower(value)
	for _, keyword := range generationKeywords {
		if strings.Contains(lower, keyword) {
			return ReasonKeyword, true
		}
	}
	if softwareTags[name] {
		return ReasonSoftware, true
	}
	if utf8.RuneCountInString(value) > longTextThreshold {
		return ReasonLongText, true
	}
	return "", false
}

func matchValue(value string) (Reason, bool) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return ReasonJSON, true
	}
	lower := strings.ToLower(value)
	if strings.Contains(lower, "prompt") && (strings.Contains(lower, "cfg") || strings.Contains(lower, "steps")) {
		return ReasonParameters, true
	}
	return "", false
}
