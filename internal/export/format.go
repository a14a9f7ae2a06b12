package export

import (
	"fmt"
	"strings"

	"readyforus/internal/domain"
)

// FormatResponse renders one response as a single human-readable line.
// It never fails: unknown values fall back to the raw slug.
func FormatResponse(q domain.Question, r domain.Response) string {
	switch q.Type {
	case domain.SingleSelect:
		text := r.SelectedValue
		if opt, ok := findOption(q.Options, r.SelectedValue); ok {
			text = opt.Label
		}
		if r.SelectedValue == "other" && r.OtherText != "" {
			text += fmt.Sprintf(" (%s)", r.OtherText)
		}
		return text

	case domain.MultiSelect:
		labels := make([]string, 0, len(r.SelectedValues))
		hasOther := false
		for _, v := range r.SelectedValues {
			if v == "other" {
				hasOther = true
			}
			if opt, ok := findOption(q.Options, v); ok {
				labels = append(labels, opt.Label)
			} else {
				labels = append(labels, v)
			}
		}
		out := strings.Join(labels, ", ")
		if hasOther && r.OtherText != "" {
			out += fmt.Sprintf(" (Other: %s)", r.OtherText)
		}
		return out

	case domain.FreeText:
		if strings.TrimSpace(r.Text) == "" {
			return "[No text entered]"
		}
		return r.Text

	case domain.Compound:
		var parts []string
		for _, f := range q.Fields {
			v, ok := r.Fields[f.Key]
			if !ok || v.Empty() {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", f.Label, formatFieldValue(f, v)))
		}
		if len(parts) == 0 {
			return "[Partially answered]"
		}
		return strings.Join(parts, "; ")
	}
	return r.Text
}

func formatFieldValue(f domain.Field, v domain.FieldValue) string {
	switch v.Kind {
	case domain.FieldList:
		labels := make([]string, 0, len(v.List))
		for _, item := range v.List {
			if opt, ok := findOption(f.Options, item); ok {
				labels = append(labels, opt.Label)
			} else {
				labels = append(labels, item)
			}
		}
		return strings.Join(labels, ", ")
	case domain.FieldNum:
		if v.Num == nil {
			return ""
		}
		return fmt.Sprintf("%d", *v.Num)
	default:
		if opt, ok := findOption(f.Options, v.Text); ok {
			return opt.Label
		}
		return v.Text
	}
}

func findOption(options []domain.Option, value string) (domain.Option, bool) {
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	return domain.Option{}, false
}
