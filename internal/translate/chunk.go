package translate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Each title travels as "0007 ⁞ title"; items are joined with " ⁂ ".
// Results are matched back by ordinal, so a separator the translator drops
// or rewrites cannot shift titles onto the wrong listing.
const (
	ordinalWidth  = 4
	maxChunkItems = 9999
	tagMarker     = " ⁞ "
	itemSeparator = " ⁂ "
)

var (
	tagPattern      = regexp.MustCompile(`(\d{4})\s*⁞\s*`)
	leadingOrdinal  = regexp.MustCompile(`^\d{4}\s*[^\p{L}\p{N}\s]?\s*`)
	tagOverhead     = ordinalWidth + utf8.RuneCountInString(tagMarker)
	separatorLength = utf8.RuneCountInString(itemSeparator)
	itemMark        = strings.TrimSpace(itemSeparator)
)

// SplitChunks groups titles, in order, so that the joined text of every group
// fits within budget runes. A title too long to fit on its own is clipped.
func SplitChunks(titles []string, budget int) [][]string {
	var (
		chunks  [][]string
		current []string
		length  int
	)

	maxTitle := budget - tagOverhead
	for _, title := range titles {
		if utf8.RuneCountInString(title) > maxTitle {
			title = clip(title, maxTitle)
		}

		cost := tagOverhead + utf8.RuneCountInString(title)
		if len(current) > 0 {
			cost += separatorLength
		}

		if len(current) > 0 && (length+cost > budget || len(current) == maxChunkItems) {
			chunks = append(chunks, current)
			current = nil
			length = 0
			cost -= separatorLength
		}

		current = append(current, title)
		length += cost
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// JoinChunk renders a chunk as one index-tagged string
func JoinChunk(titles []string) string {
	var b strings.Builder
	for i, title := range titles {
		if i > 0 {
			b.WriteString(itemSeparator)
		}
		fmt.Fprintf(&b, "%0*d%s%s", ordinalWidth, i, tagMarker, title)
	}
	return b.String()
}

// ParseChunk recovers per-title results from a translated chunk of n titles.
// Titles whose ordinal did not survive come back as "". The second return
// value is the number of titles matched by ordinal.
func ParseChunk(translated string, n int) ([]string, int) {
	results := make([]string, n)

	matches := tagPattern.FindAllStringSubmatchIndex(translated, -1)
	if len(matches) == 0 {
		return splitPositional(translated, n), 0
	}

	matched := 0
	for k, m := range matches {
		idx, err := strconv.Atoi(translated[m[2]:m[3]])
		if err != nil || idx >= n || results[idx] != "" {
			continue
		}

		end := len(translated)
		if k+1 < len(matches) {
			end = matches[k+1][0]
		}

		segment := translated[m[1]:end]
		if i := strings.Index(segment, itemMark); i >= 0 {
			segment = segment[:i]
		}
		text := cleanSegment(segment)
		if text == "" {
			continue
		}
		results[idx] = text
		matched++
	}
	return results, matched
}

// splitPositional is the fallback when no ordinal survived translation. It is
// only trusted when the separator count still lines up exactly.
func splitPositional(translated string, n int) []string {
	results := make([]string, n)
	parts := strings.Split(translated, itemMark)
	if len(parts) != n {
		return results
	}
	for i, part := range parts {
		results[i] = cleanSegment(leadingOrdinal.ReplaceAllString(strings.TrimSpace(part), ""))
	}
	return results
}

func cleanSegment(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), itemMark))
}

func clip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
