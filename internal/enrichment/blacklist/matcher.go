// Package blacklist compiles banned words, phrases and patterns into a
// matcher that scrubs outbound email text.
package blacklist

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"
)

// maxPasses bounds replacement passes. Text that still matches afterwards is
// scrubbed by deletion only, which shrinks it every pass.
const maxPasses = 16

type rule struct {
	re          *regexp.Regexp
	replacement string
	item        models.BlacklistItem
}

// Matcher is immutable after Compile and safe for concurrent use.
type Matcher struct {
	rules []rule
}

var (
	horizontalSpace  = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.;:!?)])`)
	spaceAfterParen  = regexp.MustCompile(`\([ \t]+`)
	repeatedComma    = regexp.MustCompile(`([,;])([ \t]*[,;])+`)
	lineEdgeSpace    = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// Compile builds a matcher from enabled items. Invalid patterns, patterns
// that match the empty string and empty values are skipped with a warning.
// A replacement that would itself be matched is downgraded to deletion.
func Compile(items []models.BlacklistItem, log logger.Logger) *Matcher {
	m := &Matcher{}

	for _, item := range items {
		if !item.IsEnabled {
			continue
		}
		value := strings.TrimSpace(item.Value)
		if value == "" {
			log.Warn("Skipping empty blacklist item", map[string]interface{}{"itemId": item.ID, "type": string(item.ItemType)})
			continue
		}

		var pattern string
		switch item.ItemType {
		case models.BlacklistWord:
			pattern = `(?i)` + boundary(value, true) + regexp.QuoteMeta(value) + boundary(value, false)
		case models.BlacklistPhrase, models.BlacklistTopic, models.BlacklistCompetitor:
			pattern = `(?i)` + regexp.QuoteMeta(value)
		case models.BlacklistRegex:
			pattern = item.Value
		default:
			log.Warn("Skipping blacklist item with unknown type", map[string]interface{}{"itemId": item.ID, "type": string(item.ItemType)})
			continue
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warn("Skipping invalid blacklist pattern", map[string]interface{}{"itemId": item.ID, "pattern": item.Value, "error": err.Error()})
			continue
		}
		if re.MatchString("") {
			log.Warn("Skipping blacklist pattern that matches empty text", map[string]interface{}{"itemId": item.ID, "pattern": item.Value})
			continue
		}

		m.rules = append(m.rules, rule{re: re, replacement: strings.TrimSpace(item.Replacement), item: item})
	}

	for i := range m.rules {
		r := &m.rules[i]
		if r.replacement != "" && m.matchesAny(r.replacement) {
			log.Warn("Blacklist replacement is itself blacklisted; deleting instead", map[string]interface{}{
				"itemId":      r.item.ID,
				"value":       r.item.Value,
				"replacement": r.replacement,
			})
			r.replacement = ""
		}
	}

	return m
}

// boundary adds \b only where the value's edge is a word character; a \b next
// to punctuation would never match at a word edge.
func boundary(value string, leading bool) string {
	var r rune
	if leading {
		r, _ = utf8.DecodeRuneInString(value)
	} else {
		r, _ = utf8.DecodeLastRuneInString(value)
	}
	if r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
		return `\b`
	}
	return ""
}

func (m *Matcher) matchesAny(s string) bool {
	for _, r := range m.rules {
		if r.re.MatchString(s) {
			return true
		}
	}
	return false
}

// Len is the number of active rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Apply filters text. Text without matches is returned unchanged.
func (m *Matcher) Apply(text string) string {
	out, _ := m.ApplyCount(text)
	return out
}

// ApplyCount filters text and reports how many substitutions were made. The
// result contains no match of any rule, so filtering it again is a no-op.
func (m *Matcher) ApplyCount(text string) (string, int) {
	if m.Len() == 0 || text == "" {
		return text, 0
	}

	total := 0
	for passes := 0; ; passes++ {
		next, n := m.pass(text, passes >= maxPasses)
		if n == 0 {
			return text, total
		}
		total += n
		text = tidy(next)
	}
}

type span struct {
	start, end, rule int
}

// pass replaces the earliest, then longest, non-overlapping matches of all
// rules in one left-to-right sweep. With deleteOnly set, matches are removed
// regardless of their replacement.
func (m *Matcher) pass(text string, deleteOnly bool) (string, int) {
	var spans []span
	for i, r := range m.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if loc[1] > loc[0] {
				spans = append(spans, span{start: loc[0], end: loc[1], rule: i})
			}
		}
	}
	if len(spans) == 0 {
		return text, 0
	}

	sort.Slice(spans, func(a, b int) bool {
		if spans[a].start != spans[b].start {
			return spans[a].start < spans[b].start
		}
		if la, lb := spans[a].end-spans[a].start, spans[b].end-spans[b].start; la != lb {
			return la > lb
		}
		return spans[a].rule < spans[b].rule
	})

	var (
		b     strings.Builder
		last  int
		count int
	)
	b.Grow(len(text))
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.WriteString(text[last:s.start])
		if !deleteOnly {
			b.WriteString(m.rules[s.rule].replacement)
		}
		last = s.end
		count++
	}
	b.WriteString(text[last:])

	return b.String(), count
}

// tidy collapses whitespace left behind by removals while keeping line breaks.
func tidy(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = spaceAfterParen.ReplaceAllString(s, "(")
	s = repeatedComma.ReplaceAllString(s, "$1")
	s = lineEdgeSpace.ReplaceAllString(s, "")
	return s
}
