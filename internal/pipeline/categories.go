package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

// maxCategories caps how many Round 2 topics a classifier response can
// produce, no matter how much it rambles.
const maxCategories = 10

var (
	quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// ParseCategories extracts an ordered topic list from classifier output.
// The input is untrusted LLM text, so parsing is an ordered sequence of
// total attempts taking the first success: strict JSON array, quoted strings
// inside the outermost bracket pair, then line/bullet splitting. The worst
// case is an empty list, which is a valid degenerate Round 2 input; this
// never returns an error.
func ParseCategories(raw string) []string {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}

	if cats, ok := parseJSONArray(raw); ok {
		return capCategories(cats)
	}
	if cats, ok := parseBracketQuoted(raw); ok {
		return capCategories(cats)
	}
	return capCategories(parseLines(raw))
}

// stripCodeFence removes a markdown code fence wrapper (```json ... ```)
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseJSONArray attempts a strict structured parse of a JSON string array
func parseJSONArray(s string) ([]string, bool) {
	var cats []string
	if err := json.Unmarshal([]byte(s), &cats); err == nil {
		return cats, true
	}

	// Tolerate mixed-type arrays, keeping only the string entries
	var anyCats []interface{}
	if err := json.Unmarshal([]byte(s), &anyCats); err != nil {
		return nil, false
	}
	cats = make([]string, 0, len(anyCats))
	for _, v := range anyCats {
		if str, ok := v.(string); ok {
			cats = append(cats, str)
		}
	}
	return cats, true
}

// parseBracketQuoted extracts quoted substrings inside the outermost bracket
// pair, recovering lists the strict parse rejects (trailing commas, single
// quotes, prose around the brackets).
func parseBracketQuoted(s string) ([]string, bool) {
	open := strings.IndexByte(s, '[')
	closing := strings.LastIndexByte(s, ']')
	if open < 0 || closing <= open {
		return nil, false
	}

	matches := quotedRe.FindAllStringSubmatch(s[open:closing+1], -1)
	if len(matches) == 0 {
		return nil, false
	}

	cats := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			cats = append(cats, m[1])
		} else if m[2] != "" {
			cats = append(cats, m[2])
		}
	}
	return cats, len(cats) > 0
}

// parseLines splits on newlines, trimming bullet and numbering markers
func parseLines(s string) []string {
	lines := strings.Split(s, "\n")
	cats := make([]string, 0, len(lines))
	for _, line := range lines {
		line = bulletRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			cats = append(cats, line)
		}
	}
	return cats
}

// capCategories trims entries, drops empties and enforces maxCategories
func capCategories(cats []string) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
		if len(out) == maxCategories {
			break
		}
	}
	return out
}
