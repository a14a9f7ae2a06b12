package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type QuestionType string

const (
	SingleSelect QuestionType = "single_select"
	MultiSelect  QuestionType = "multi_select"
	FreeText     QuestionType = "free_text"
	Compound     QuestionType = "compound"
)

type FieldType string

const (
	FieldSingleSelect FieldType = "single_select"
	FieldMultiSelect  FieldType = "multi_select"
	FieldFreeText     FieldType = "free_text"
	FieldNumber       FieldType = "number"
)

// Mode is the survey length variant. Full is a superset of lite's questions.
type Mode string

const (
	ModeLite Mode = "lite"
	ModeFull Mode = "full"
)

// Option pairs a machine-stable value slug with its human-readable label.
// Labels appear verbatim in text exports; values never change once shipped.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Field is one sub-field of a compound question.
type Field struct {
	Key     string    `json:"key" yaml:"key"`
	Label   string    `json:"label" yaml:"label"`
	Type    FieldType `json:"type" yaml:"type"`
	Options []Option  `json:"options,omitempty" yaml:"options,omitempty"`
}

type Question struct {
	ID        string       `json:"id" yaml:"id"`
	Order     int          `json:"order" yaml:"order"`
	SectionID string       `json:"section_id" yaml:"section_id"`
	Title     string       `json:"title" yaml:"title"`
	Prompt    string       `json:"prompt" yaml:"prompt"`
	Type      QuestionType `json:"type" yaml:"type"`
	Options   []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	Fields    []Field      `json:"fields,omitempty" yaml:"fields,omitempty"`
	Lite      bool         `json:"-" yaml:"lite"`
}

type Section struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Artifact is the branding/metadata block for one questionnaire phase.
type Artifact struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle" yaml:"subtitle"`
	Stage    string `json:"stage,omitempty" yaml:"stage,omitempty"`
}

type PromptSection struct {
	Section      string   `json:"section" yaml:"section"`
	Requirements []string `json:"requirements" yaml:"requirements"`
}

type PromptTemplate struct {
	Role         string          `json:"role" yaml:"role"`
	Context      []string        `json:"context" yaml:"context"`
	OutputFormat []PromptSection `json:"output_format" yaml:"output_format"`
	Constraints  []string        `json:"constraints" yaml:"constraints"`
}

type QuestionStatus string

const (
	StatusAnswered   QuestionStatus = "answered"
	StatusSkipped    QuestionStatus = "skipped"
	StatusUnanswered QuestionStatus = "unanswered"
)

type Stats struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Skipped    int `json:"skipped"`
	Unanswered int `json:"unanswered"`
	Progress   int `json:"progress"`
}

// FieldKind discriminates the shape of a compound field value.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldList
	FieldNum
)

// FieldValue is one compound-field value: a string, a list of option
// values, or a number. A nil Num means the number failed to parse and
// serializes as null.
type FieldValue struct {
	Kind FieldKind
	Text string
	List []string
	Num  *int
}

func TextValue(s string) FieldValue    { return FieldValue{Kind: FieldText, Text: s} }
func ListValue(ss []string) FieldValue { return FieldValue{Kind: FieldList, List: ss} }
func NumberValue(n int) FieldValue     { return FieldValue{Kind: FieldNum, Num: &n} }
func NullNumber() FieldValue           { return FieldValue{Kind: FieldNum} }

func (v FieldValue) Empty() bool {
	switch v.Kind {
	case FieldList:
		return len(v.List) == 0
	case FieldNum:
		return v.Num == nil
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case FieldList:
		if v.List == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.List)
	case FieldNum:
		if v.Num == nil {
			return []byte("null"), nil
		}
		return json.Marshal(*v.Num)
	default:
		return json.Marshal(v.Text)
	}
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch {
	case trimmed == "null":
		*v = NullNumber()
		return nil
	case strings.HasPrefix(trimmed, "["):
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*v = ListValue(list)
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	default:
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("field value %s: %w", trimmed, err)
		}
		*v = NumberValue(n)
		return nil
	}
}

// Response holds one question's answer. Which members are meaningful
// depends on the question's type; compound answers live entirely in
// Fields, keyed by field key. The JSON shape mirrors the export format:
// compound responses serialize as a flat field map, everything else
// under the scalar keys.
type Response struct {
	SelectedValue  string
	SelectedValues []string
	OtherText      string
	Text           string
	Fields         map[string]FieldValue
	ImportedText   string
}

func (r Response) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if len(r.Fields) > 0 || r.ImportedText != "" {
		for k, v := range r.Fields {
			m[k] = v
		}
		if r.ImportedText != "" {
			m["_importedText"] = r.ImportedText
		}
		return json.Marshal(m)
	}
	if r.SelectedValue != "" {
		m["selected_value"] = r.SelectedValue
	}
	if len(r.SelectedValues) > 0 {
		m["selected_values"] = r.SelectedValues
	}
	if r.OtherText != "" {
		m["other_text"] = r.OtherText
	}
	if r.Text != "" {
		m["text"] = r.Text
	}
	return json.Marshal(m)
}

func (r *Response) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Response{}
	for k, v := range raw {
		var err error
		switch k {
		case "selected_value":
			err = json.Unmarshal(v, &r.SelectedValue)
		case "selected_values":
			err = json.Unmarshal(v, &r.SelectedValues)
		case "other_text":
			err = json.Unmarshal(v, &r.OtherText)
		case "text":
			err = json.Unmarshal(v, &r.Text)
		case "_importedText":
			err = json.Unmarshal(v, &r.ImportedText)
		default:
			var fv FieldValue
			if err = json.Unmarshal(v, &fv); err == nil {
				if r.Fields == nil {
					r.Fields = map[string]FieldValue{}
				}
				r.Fields[k] = fv
			}
		}
		if err != nil {
			return fmt.Errorf("response key %q: %w", k, err)
		}
	}
	return nil
}

// Answered reports whether a response counts as an answer for its
// question's type. Export stats and in-app progress both go through
// here; the rules must not diverge.
func Answered(q Question, r Response) bool {
	switch q.Type {
	case SingleSelect:
		return r.SelectedValue != ""
	case MultiSelect:
		return len(r.SelectedValues) > 0
	case FreeText:
		return strings.TrimSpace(r.Text) != ""
	case Compound:
		for _, v := range r.Fields {
			if !v.Empty() {
				return true
			}
		}
		return false
	}
	return false
}
