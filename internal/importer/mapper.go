package importer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"readyforus/internal/domain"
)

// MapResult is the best-effort mapping of one raw answer onto one live
// question. Mapping never fails outright: imported data may be stale
// relative to the current schema, so unresolved pieces lower the
// confidence flag instead of rejecting the file.
type MapResult struct {
	Response    domain.Response
	FullyMapped bool
	Warnings    []string
}

// MappingResult aggregates a whole file's mapping.
type MappingResult struct {
	Mapped        map[string]domain.Response
	NeedsReview   []string
	FieldWarnings map[string][]string
}

// FindMatchingOption resolves imported text against a question's
// options, trying tiers in order and returning the first hit:
// exact value, normalized value, exact label (case-insensitive),
// normalized label, substring containment either direction, and
// finally a 10-character normalized prefix.
func FindMatchingOption(imported string, options []domain.Option) (domain.Option, bool) {
	if imported == "" || len(options) == 0 {
		return domain.Option{}, false
	}
	norm := normalizeToken(imported)

	for _, o := range options {
		if o.Value == imported {
			return o, true
		}
	}
	for _, o := range options {
		if normalizeToken(o.Value) == norm {
			return o, true
		}
	}
	for _, o := range options {
		if strings.EqualFold(o.Label, imported) {
			return o, true
		}
	}
	for _, o := range options {
		if normalizeToken(o.Label) == norm {
			return o, true
		}
	}
	for _, o := range options {
		nl := normalizeToken(o.Label)
		if nl == "" || norm == "" {
			continue
		}
		if strings.Contains(nl, norm) || strings.Contains(norm, nl) {
			return o, true
		}
	}
	prefix := truncate(norm, 10)
	if prefix != "" {
		for _, o := range options {
			if strings.HasPrefix(normalizeToken(o.Label), prefix) {
				return o, true
			}
		}
	}
	return domain.Option{}, false
}

// MapResponse maps one raw answer to the question's declared type.
func MapResponse(raw RawAnswer, q domain.Question) MapResult {
	switch q.Type {
	case domain.MultiSelect:
		return mapMultiSelect(raw, q)
	case domain.SingleSelect:
		return mapSingleSelect(raw, q)
	case domain.FreeText:
		text := raw.Text
		return MapResult{
			Response:    domain.Response{Text: text},
			FullyMapped: strings.TrimSpace(text) != "",
		}
	case domain.Compound:
		return mapCompound(raw, q)
	}
	return MapResult{
		Response:    domain.Response{Text: raw.Text},
		FullyMapped: false,
		Warnings:    []string{fmt.Sprintf("Unknown question type: %s", q.Type)},
	}
}

func mapMultiSelect(raw RawAnswer, q domain.Question) MapResult {
	// Original labels match more reliably than lossily-normalized slugs.
	imported := raw.RawItems
	if len(imported) == 0 {
		imported = raw.SelectedValues
	}

	fullyMapped := true
	var values []string
	hasOther := false
	for _, item := range imported {
		opt, ok := FindMatchingOption(item, q.Options)
		if !ok {
			fullyMapped = false
			continue
		}
		values = append(values, opt.Value)
		if opt.Value == "other" {
			hasOther = true
		}
	}
	if len(imported) > 0 && len(values) == 0 {
		fullyMapped = false
	}

	otherText := raw.OtherText
	if otherText == "" && raw.Text != "" {
		if t, _ := extractOther(raw.Text); t != "" {
			otherText = t
		}
	}
	if !hasOther {
		otherText = ""
	}
	return MapResult{
		Response:    domain.Response{SelectedValues: values, OtherText: otherText},
		FullyMapped: fullyMapped,
	}
}

func mapSingleSelect(raw RawAnswer, q domain.Question) MapResult {
	imported := raw.SelectedValue
	if imported == "" {
		imported = raw.Text
	}
	if opt, ok := FindMatchingOption(imported, q.Options); ok {
		return MapResult{
			Response:    domain.Response{SelectedValue: opt.Value, OtherText: raw.OtherText},
			FullyMapped: true,
		}
	}
	// Keep the unmatched text so no user input is silently discarded.
	return MapResult{
		Response:    domain.Response{OtherText: imported},
		FullyMapped: false,
	}
}

// aliasRule maps a substring of a classifier-invented key onto a
// schema field. These exist because the TXT classifier derives keys
// from prose labels that rarely equal schema field keys.
type aliasRule struct {
	keySubstring string
	fieldKey     string
	numberOnly   bool
}

var aliasRules = []aliasRule{
	{keySubstring: "number", numberOnly: true},
	{keySubstring: "how_many", numberOnly: true},
	{keySubstring: "milestone", fieldKey: "milestone_text"},
	{keySubstring: "sign", fieldKey: "natural_sign_text"},
	{keySubstring: "feels_off", fieldKey: "trigger_rule"},
	{keySubstring: "something_feels", fieldKey: "trigger_rule"},
	{keySubstring: "when_do_we_talk", fieldKey: "trigger_rule"},
	{keySubstring: "how_often", fieldKey: "frequency"},
	{keySubstring: "preferred_format", fieldKey: "format"},
	{keySubstring: "format_choose", fieldKey: "format"},
}

func aliasMatches(rule aliasRule, field domain.Field, rawKey string) bool {
	if !strings.Contains(rawKey, rule.keySubstring) {
		return false
	}
	if rule.numberOnly {
		return field.Type == domain.FieldNumber
	}
	return field.Key == rule.fieldKey
}

// findFieldValue locates a field's value among the raw answer's keys:
// exact key, then normalized label/key equality or containment, then
// the alias table, then a last-resort fuzzy substring on key names
// excluding the generic "text" key.
func findFieldValue(raw RawAnswer, field domain.Field) (domain.FieldValue, bool) {
	if v, ok := raw.Fields[field.Key]; ok {
		return v, true
	}
	normLabel := normalizeToken(field.Label)
	labelWords := strings.Fields(field.Label)
	if len(labelWords) > 3 {
		labelWords = labelWords[:3]
	}
	labelPrefix := normalizeToken(strings.Join(labelWords, " "))

	for rKey, v := range raw.Fields {
		nk := normalizeToken(rKey)
		if nk == normLabel ||
			(nk != "" && strings.Contains(normLabel, nk)) ||
			(normLabel != "" && strings.Contains(nk, normLabel)) ||
			(labelPrefix != "" && strings.HasPrefix(nk, labelPrefix)) {
			return v, true
		}
		for _, rule := range aliasRules {
			if aliasMatches(rule, field, nk) {
				return v, true
			}
		}
	}

	lowerKey := strings.ToLower(field.Key)
	for rKey, v := range raw.Fields {
		if rKey == "text" {
			continue
		}
		lk := strings.ToLower(rKey)
		if strings.Contains(lk, lowerKey) || strings.Contains(lowerKey, lk) {
			return v, true
		}
	}
	return domain.FieldValue{}, false
}

func mapCompound(raw RawAnswer, q domain.Question) MapResult {
	fullyMapped := true
	var warnings []string
	fields := map[string]domain.FieldValue{}

	for _, field := range q.Fields {
		value, found := findFieldValue(raw, field)

		switch field.Type {
		case domain.FieldMultiSelect:
			items := fieldItems(value, found)
			var mapped []string
			for _, item := range items {
				if opt, ok := FindMatchingOption(item, field.Options); ok {
					mapped = append(mapped, opt.Value)
				}
			}
			fields[field.Key] = domain.ListValue(mapped)
			if len(items) > 0 && len(mapped) == 0 {
				warnings = append(warnings, fmt.Sprintf("Field %q: no options matched", field.Label))
				fullyMapped = false
			} else if len(items) > len(mapped) {
				warnings = append(warnings, fmt.Sprintf("Field %q: %d option(s) not matched", field.Label, len(items)-len(mapped)))
				fullyMapped = false
			}

		case domain.FieldSingleSelect:
			text := fieldText(value, found)
			if opt, ok := FindMatchingOption(text, field.Options); ok {
				fields[field.Key] = domain.TextValue(opt.Value)
			} else {
				fields[field.Key] = domain.TextValue("")
				if text != "" {
					warnings = append(warnings, fmt.Sprintf("Field %q: %q not matched", field.Label, text))
					fullyMapped = false
				}
			}

		case domain.FieldNumber:
			if n, ok := leadingInt(fieldText(value, found)); ok {
				fields[field.Key] = domain.NumberValue(n)
			} else {
				fields[field.Key] = domain.NullNumber()
			}

		default:
			fields[field.Key] = domain.TextValue(fieldText(value, found))
		}
	}

	r := domain.Response{Fields: fields}
	if raw.Text != "" {
		// Escape hatch for manual recovery of the original prose.
		r.ImportedText = raw.Text
	}
	return MapResult{Response: r, FullyMapped: fullyMapped, Warnings: warnings}
}

func fieldItems(v domain.FieldValue, found bool) []string {
	if !found {
		return nil
	}
	switch v.Kind {
	case domain.FieldList:
		return v.List
	case domain.FieldNum:
		if v.Num == nil {
			return nil
		}
		return []string{strconv.Itoa(*v.Num)}
	default:
		if v.Text == "" {
			return nil
		}
		if strings.Contains(v.Text, ",") {
			return smartCommaSplit(v.Text)
		}
		return []string{v.Text}
	}
}

func fieldText(v domain.FieldValue, found bool) string {
	if !found {
		return ""
	}
	switch v.Kind {
	case domain.FieldList:
		return strings.Join(v.List, ", ")
	case domain.FieldNum:
		if v.Num == nil {
			return ""
		}
		return strconv.Itoa(*v.Num)
	default:
		return v.Text
	}
}

// leadingInt parses an integer prefix, so "3 close friends" yields 3.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateAndMap maps every imported answer against the live question
// set. IDs absent from the schema are dropped and flagged, never kept.
func ValidateAndMap(answers map[string]RawAnswer, questions map[string]domain.Question) MappingResult {
	result := MappingResult{
		Mapped:        map[string]domain.Response{},
		FieldWarnings: map[string][]string{},
	}
	for id, raw := range answers {
		q, ok := questions[id]
		if !ok {
			result.NeedsReview = append(result.NeedsReview, id)
			result.FieldWarnings[id] = []string{"Question not found in current questionnaire"}
			continue
		}
		mapped := MapResponse(raw, q)
		result.Mapped[id] = mapped.Response
		if len(mapped.Warnings) > 0 {
			result.FieldWarnings[id] = mapped.Warnings
		}
		if !mapped.FullyMapped {
			result.NeedsReview = append(result.NeedsReview, id)
		}
	}
	sort.Strings(result.NeedsReview)
	return result
}
