package importer

import (
	"regexp"
	"strings"
	"unicode"

	"readyforus/internal/domain"
)

// GuessKind tags the classifier's guess about an answer's shape.
type GuessKind int

const (
	// ScalarGuess is a single item or a run of prose.
	ScalarGuess GuessKind = iota
	// ListGuess is several comma-separated items.
	ListGuess
	// CompoundGuess is "Label: value; Label: value" field pairs.
	CompoundGuess
)

// RawAnswer is the classifier's best-effort reading of one free-text
// answer. Every scalar/list guess carries all of Text, SelectedValue,
// SelectedValues, RawItems and OtherText so the mapper can pick
// whichever matches the live question's declared type. The guess is
// lossy and never authoritative.
type RawAnswer struct {
	Kind           GuessKind
	Text           string
	SelectedValue  string
	SelectedValues []string
	RawItems       []string
	OtherText      string
	Fields         map[string]domain.FieldValue
}

var otherStartRe = regexp.MustCompile(`(?i)\(Other:\s*`)
var doubleCommaRe = regexp.MustCompile(`,\s*,`)
var trailingCommaRe = regexp.MustCompile(`,\s*$`)

// ClassifyAnswer guesses the structure of one answer string.
func ClassifyAnswer(answerText string) RawAnswer {
	answerText = strings.TrimSpace(answerText)
	if answerText == "" {
		return RawAnswer{Kind: ScalarGuess}
	}

	if strings.Contains(answerText, ": ") && strings.Contains(answerText, ";") {
		if fields := parseCompound(answerText); len(fields) > 0 {
			return RawAnswer{Kind: CompoundGuess, Text: answerText, Fields: fields}
		}
	}

	otherText, cleaned := extractOther(answerText)
	items := smartCommaSplit(cleaned)

	rawItems := make([]string, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			rawItems = append(rawItems, it)
		}
	}
	var selectedValues []string
	seen := map[string]bool{}
	for _, it := range items {
		v := normalizeToken(it)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		selectedValues = append(selectedValues, v)
	}

	var selectedValue string
	if len(items) == 1 {
		selectedValue = normalizeToken(items[0])
	} else {
		selectedValue = truncate(collapseSpaces(strings.ToLower(answerText)), 100)
	}

	kind := ScalarGuess
	if len(rawItems) > 1 {
		kind = ListGuess
	}
	return RawAnswer{
		Kind:           kind,
		Text:           answerText,
		SelectedValue:  selectedValue,
		SelectedValues: selectedValues,
		RawItems:       rawItems,
		OtherText:      otherText,
	}
}

// parseCompound splits on semicolons that start a new capitalized
// label, then turns each "Label: value" pair into a field. Short
// comma-separated values become lists.
func parseCompound(text string) map[string]domain.FieldValue {
	fields := map[string]domain.FieldValue{}
	for _, part := range splitFieldSegments(text) {
		colonIdx := strings.Index(part, ":")
		if colonIdx <= 0 || colonIdx >= 100 {
			continue
		}
		key := normalizeToken(part[:colonIdx])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(part[colonIdx+1:])
		items := smartCommaSplit(value)
		if len(items) > 1 && len(value) < 150 {
			fields[key] = domain.ListValue(items)
		} else {
			fields[key] = domain.TextValue(value)
		}
	}
	return fields
}

// splitFieldSegments splits on ";" only when the next non-space rune
// is an upper-case letter, so prose semicolons inside a value survive.
func splitFieldSegments(s string) []string {
	var parts []string
	last := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ';' {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if j < len(s) && s[j] >= 'A' && s[j] <= 'Z' {
			parts = append(parts, s[last:i])
			last = j
			i = j - 1
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// extractOther pulls a "(Other: ...)" parenthetical out of the text
// using balanced paren counting, so nested parentheses inside the
// other-text do not truncate it.
func extractOther(s string) (otherText, cleaned string) {
	loc := otherStartRe.FindStringIndex(s)
	if loc == nil {
		return "", s
	}
	start := loc[0]
	contentStart := loc[1]
	depth := 0
	end := -1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return "", s
	}
	otherText = strings.TrimSpace(s[contentStart:end])
	cleaned = strings.TrimSpace(s[:start] + s[end+1:])
	cleaned = doubleCommaRe.ReplaceAllString(cleaned, ",")
	cleaned = strings.TrimSpace(trailingCommaRe.ReplaceAllString(cleaned, ""))
	return otherText, cleaned
}

// smartCommaSplit splits on commas outside parentheses:
// "A (x, y), B" -> ["A (x, y)", "B"].
func smartCommaSplit(text string) []string {
	if text == "" {
		return nil
	}
	var items []string
	var current strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '(':
			depth++
			current.WriteRune(r)
		case r == ')':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case r == ',' && depth == 0:
			if t := strings.TrimSpace(current.String()); t != "" {
				items = append(items, t)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		items = append(items, t)
	}
	return items
}

// normalizeToken lower-cases, strips punctuation and joins words with
// underscores: "Mostly, with strain" -> "mostly_with_strain".
func normalizeToken(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "_")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
