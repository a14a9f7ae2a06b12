package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"readyforus/internal/domain"
)

//go:embed data/checkin.yml
var embedded []byte

// Kind selects a prompt template family.
type Kind string

const (
	KindIndividual Kind = "individual"
	KindCouple     Kind = "couple"
)

// Loader is the read-only question schema provider. It owns the artifact
// metadata, the section list, the full question set, and the prompt
// templates for both modes.
type Loader struct {
	artifact  domain.Artifact
	sections  []domain.Section
	questions []domain.Question
	prompts   map[Kind]map[domain.Mode]*domain.PromptTemplate
	byID      map[string]domain.Question
}

type fileModel struct {
	Artifact  domain.Artifact                              `yaml:"artifact"`
	Sections  []domain.Section                             `yaml:"sections"`
	Questions []domain.Question                            `yaml:"questions"`
	Prompts   map[string]map[string]*domain.PromptTemplate `yaml:"prompts"`
}

// Load parses the embedded questionnaire schema.
func Load() (*Loader, error) {
	return FromYAML(embedded)
}

// FromFile reads a schema override from the given path.
func FromFile(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a schema from raw YAML bytes.
func FromYAML(data []byte) (*Loader, error) {
	var m fileModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid schema yaml: %w", err)
	}
	l := &Loader{
		artifact:  m.Artifact,
		sections:  m.Sections,
		questions: m.Questions,
		prompts:   map[Kind]map[domain.Mode]*domain.PromptTemplate{},
		byID:      map[string]domain.Question{},
	}
	for kind, byMode := range m.Prompts {
		l.prompts[Kind(kind)] = map[domain.Mode]*domain.PromptTemplate{}
		for mode, tpl := range byMode {
			l.prompts[Kind(kind)][domain.Mode(mode)] = tpl
		}
	}
	for _, q := range m.Questions {
		l.byID[q.ID] = q
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate ensures the schema meets required structure.
func (l *Loader) Validate() error {
	if l.artifact.ID == "" || l.artifact.Title == "" {
		return fmt.Errorf("schema.artifact.id and title are required")
	}
	if len(l.questions) == 0 {
		return fmt.Errorf("schema has no questions")
	}
	sections := map[string]bool{}
	for _, s := range l.sections {
		if s.ID == "" || s.Title == "" {
			return fmt.Errorf("schema.sections entries need id and title")
		}
		sections[s.ID] = true
	}
	seen := map[string]bool{}
	liteCount := 0
	for i, q := range l.questions {
		if q.ID == "" {
			return fmt.Errorf("question %d has empty id", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
		if q.Order != i+1 {
			return fmt.Errorf("question %s out of order: order %d at position %d", q.ID, q.Order, i+1)
		}
		if !sections[q.SectionID] {
			return fmt.Errorf("question %s references unknown section %s", q.ID, q.SectionID)
		}
		if q.Lite {
			liteCount++
		}
		switch q.Type {
		case domain.SingleSelect, domain.MultiSelect:
			if len(q.Options) == 0 {
				return fmt.Errorf("question %s (%s) has no options", q.ID, q.Type)
			}
			for _, o := range q.Options {
				if o.Value == "" || o.Label == "" {
					return fmt.Errorf("question %s has an option missing value or label", q.ID)
				}
			}
		case domain.FreeText:
		case domain.Compound:
			if len(q.Fields) == 0 {
				return fmt.Errorf("compound question %s has no fields", q.ID)
			}
			for _, f := range q.Fields {
				if f.Key == "" || f.Label == "" {
					return fmt.Errorf("question %s has a field missing key or label", q.ID)
				}
				switch f.Type {
				case domain.FieldSingleSelect, domain.FieldMultiSelect:
					if len(f.Options) == 0 {
						return fmt.Errorf("question %s field %s (%s) has no options", q.ID, f.Key, f.Type)
					}
				case domain.FieldFreeText, domain.FieldNumber:
				default:
					return fmt.Errorf("question %s field %s has unknown type %q", q.ID, f.Key, f.Type)
				}
			}
		default:
			return fmt.Errorf("question %s has unknown type %q", q.ID, q.Type)
		}
	}
	if liteCount == 0 {
		return fmt.Errorf("schema marks no questions as lite")
	}
	for _, kind := range []Kind{KindIndividual, KindCouple} {
		for _, mode := range []domain.Mode{domain.ModeLite, domain.ModeFull} {
			if l.Prompt(kind, mode) == nil {
				return fmt.Errorf("missing %s/%s prompt template", kind, mode)
			}
		}
	}
	return nil
}

// Artifact returns the phase branding block.
func (l *Loader) Artifact() domain.Artifact {
	return l.artifact
}

// Sections returns the ordered section list.
func (l *Loader) Sections() []domain.Section {
	return l.sections
}

// Questions returns the ordered question list for a mode. Lite is the
// subset flagged lite; full is everything.
func (l *Loader) Questions(mode domain.Mode) []domain.Question {
	if mode == domain.ModeFull {
		return l.questions
	}
	var out []domain.Question
	for _, q := range l.questions {
		if q.Lite {
			out = append(out, q)
		}
	}
	return out
}

// Question looks up a question by id across all modes.
func (l *Loader) Question(id string) (domain.Question, bool) {
	q, ok := l.byID[id]
	return q, ok
}

// QuestionsByID returns the full question set keyed by id.
func (l *Loader) QuestionsByID(mode domain.Mode) map[string]domain.Question {
	out := map[string]domain.Question{}
	for _, q := range l.Questions(mode) {
		out[q.ID] = q
	}
	return out
}

// SectionFor returns the section a question belongs to.
func (l *Loader) SectionFor(questionID string) (domain.Section, bool) {
	q, ok := l.byID[questionID]
	if !ok {
		return domain.Section{}, false
	}
	for _, s := range l.sections {
		if s.ID == q.SectionID {
			return s, true
		}
	}
	return domain.Section{}, false
}

// Prompt returns the template for a kind/mode, or nil when absent.
func (l *Loader) Prompt(kind Kind, mode domain.Mode) *domain.PromptTemplate {
	byMode, ok := l.prompts[kind]
	if !ok {
		return nil
	}
	return byMode[mode]
}

// InferMode guesses the mode from a question count, used when an import
// carries no explicit mode. Anything over 20 questions is the full set.
func InferMode(questionCount int) domain.Mode {
	if questionCount > 20 {
		return domain.ModeFull
	}
	return domain.ModeLite
}

// NormalizeMode maps loose user input onto a mode, defaulting to lite.
func NormalizeMode(s string) domain.Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(domain.ModeFull)) {
		return domain.ModeFull
	}
	return domain.ModeLite
}
