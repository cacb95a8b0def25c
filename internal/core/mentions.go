package core

import (
	"regexp"
	"strings"
)

// MentionSuggestionLimit caps the autocomplete candidate list.
const MentionSuggestionLimit = 6

var trailingMentionRe = regexp.MustCompile(`(^|\s)@([^@\s]*)$`)

// MentionQuery is an open "@fragment" at the end of a draft.
type MentionQuery struct {
	// Start is the byte offset of the '@'.
	Start    int
	Fragment string
}

// MatchTrailingMention finds an "@fragment" at the end of text that starts the
// string or follows whitespace.
func MatchTrailingMention(text string) (MentionQuery, bool) {
	match := trailingMentionRe.FindStringSubmatchIndex(text)
	if match == nil {
		return MentionQuery{}, false
	}
	// match[3] is the end of the leading group, which is where '@' sits.
	return MentionQuery{Start: match[3], Fragment: text[match[4]:match[5]]}, true
}

// FilterMentionCandidates keeps labels containing fragment (case-insensitive),
// preserving input order, up to MentionSuggestionLimit entries.
func FilterMentionCandidates(labels []string, fragment string) []string {
	query := strings.ToLower(fragment)
	out := make([]string, 0, MentionSuggestionLimit)
	for _, label := range labels {
		if query != "" && !strings.Contains(strings.ToLower(label), query) {
			continue
		}
		out = append(out, label)
		if len(out) >= MentionSuggestionLimit {
			break
		}
	}
	return out
}

// ApplyMention replaces the trailing "@fragment" with "@name ".
func ApplyMention(text, label string) (string, bool) {
	query, ok := MatchTrailingMention(text)
	if !ok {
		return text, false
	}
	name := strings.TrimPrefix(strings.TrimSpace(label), "@")
	if name == "" {
		return text, false
	}
	return text[:query.Start] + "@" + name + " ", true
}

// MentionTokens lists the tokens that address a user in message bodies.
func MentionTokens(username, fullName string) []string {
	seen := map[string]struct{}{}
	var tokens []string
	add := func(value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || value == "@" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		tokens = append(tokens, value)
	}
	if username != "" {
		add("@" + username)
	}
	if name := strings.TrimSpace(fullName); name != "" {
		add("@" + name)
		add("@" + strings.Fields(name)[0])
	}
	return tokens
}

// HasMention reports whether body addresses any of tokens as a whole word.
func HasMention(body string, tokens []string) bool {
	if body == "" || len(tokens) == 0 {
		return false
	}
	normalized := strings.ToLower(body)
	for _, token := range tokens {
		idx := 0
		for {
			pos := strings.Index(normalized[idx:], token)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(token)
			before := start == 0 || isSpace(normalized[start-1])
			after := end == len(normalized) || isSpace(normalized[end])
			if before && after {
				return true
			}
			idx = start + 1
		}
	}
	return false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
