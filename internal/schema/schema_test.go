package schema

import (
	"strings"
	"testing"

	"readyforus/internal/domain"
)

func TestLoadEmbedded(t *testing.T) {
	l, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Artifact().ID != "slow-build-checkin" {
		t.Fatalf("artifact id = %q", l.Artifact().ID)
	}
	full := l.Questions(domain.ModeFull)
	lite := l.Questions(domain.ModeLite)
	if len(full) != 24 {
		t.Fatalf("full set has %d questions, want 24", len(full))
	}
	if len(lite) != 10 {
		t.Fatalf("lite set has %d questions, want 10", len(lite))
	}
	for i, q := range full {
		if q.Order != i+1 {
			t.Errorf("question %s order %d at position %d", q.ID, q.Order, i+1)
		}
	}
	liteIDs := map[string]bool{}
	for _, q := range lite {
		liteIDs[q.ID] = true
	}
	for _, q := range full[:10] {
		if !liteIDs[q.ID] {
			t.Errorf("expected %s in lite subset", q.ID)
		}
	}
}

func TestQuestionLookup(t *testing.T) {
	l, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q, ok := l.Question("q06")
	if !ok {
		t.Fatal("q06 not found")
	}
	if q.Type != domain.Compound {
		t.Fatalf("q06 type = %q", q.Type)
	}
	keys := map[string]bool{}
	for _, f := range q.Fields {
		keys[f.Key] = true
	}
	for _, want := range []string{"frequency", "format", "trigger_rule"} {
		if !keys[want] {
			t.Errorf("q06 missing field %s", want)
		}
	}
	if _, ok := l.Question("q99"); ok {
		t.Fatal("q99 should not exist")
	}
	sec, ok := l.SectionFor("q06")
	if !ok || sec.ID != "communication" {
		t.Fatalf("q06 section = %+v ok=%v", sec, ok)
	}
}

func TestPromptTemplates(t *testing.T) {
	l, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, kind := range []Kind{KindIndividual, KindCouple} {
		for _, mode := range []domain.Mode{domain.ModeLite, domain.ModeFull} {
			tpl := l.Prompt(kind, mode)
			if tpl == nil {
				t.Fatalf("missing %s/%s template", kind, mode)
			}
			if tpl.Role == "" || len(tpl.OutputFormat) == 0 {
				t.Errorf("%s/%s template incomplete", kind, mode)
			}
		}
	}
	couple := l.Prompt(KindCouple, domain.ModeLite)
	found := false
	for _, s := range couple.OutputFormat {
		if strings.Contains(s.Section, "[Person A]") {
			found = true
		}
	}
	if !found {
		t.Error("couple template has no [Person A] placeholder")
	}
}

func TestValidateRejectsBrokenSchemas(t *testing.T) {
	cases := []struct {
		name string
		yml  string
	}{
		{"no questions", `
artifact: {id: x, title: X}
sections: [{id: s, title: S}]
questions: []
`},
		{"duplicate id", `
artifact: {id: x, title: X}
sections: [{id: s, title: S}]
questions:
  - {id: q01, order: 1, section_id: s, lite: true, title: T, prompt: P, type: free_text}
  - {id: q01, order: 2, section_id: s, title: T, prompt: P, type: free_text}
`},
		{"select without options", `
artifact: {id: x, title: X}
sections: [{id: s, title: S}]
questions:
  - {id: q01, order: 1, section_id: s, lite: true, title: T, prompt: P, type: single_select}
`},
		{"unknown section", `
artifact: {id: x, title: X}
sections: [{id: s, title: S}]
questions:
  - {id: q01, order: 1, section_id: nope, lite: true, title: T, prompt: P, type: free_text}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromYAML([]byte(tc.yml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestInferMode(t *testing.T) {
	if got := InferMode(10); got != domain.ModeLite {
		t.Fatalf("InferMode(10) = %s", got)
	}
	if got := InferMode(24); got != domain.ModeFull {
		t.Fatalf("InferMode(24) = %s", got)
	}
	if got := InferMode(20); got != domain.ModeLite {
		t.Fatalf("InferMode(20) = %s", got)
	}
}
