package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"readyforus/internal/domain"
	"readyforus/internal/schema"
)

func testSnapshot(t *testing.T) Snapshot {
	t.Helper()
	sc, err := schema.Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return Snapshot{
		Artifact:  sc.Artifact(),
		Sections:  sc.Sections(),
		Questions: sc.Questions(domain.ModeLite),
		Responses: map[string]domain.Response{
			"q01": {SelectedValue: "fully"},
			"q04": {Text: "We talk most evenings."},
		},
		Skipped:         map[string]bool{"q02": true},
		Mode:            domain.ModeLite,
		ParticipantName: "Sam Rivera",
		Now:             time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestTextReport(t *testing.T) {
	s := testSnapshot(t)
	text := Text(s)

	for _, want := range []string{
		"Completed by: Sam Rivera",
		"Date: 2026-08-15",
		"Progress: 2/10 questions answered",
		"Skipped: 1 questions",
		"▸ FOUNDATION & TRUST",
		"Q1: Trust",
		"➤ Fully, without reservation",
		"➤ [Skipped]",
		"➤ [Not answered]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if !strings.HasPrefix(text, strings.Repeat("═", 60)) {
		t.Error("report missing banner")
	}
}

func TestTextReportOmitsSkippedLineWhenNone(t *testing.T) {
	s := testSnapshot(t)
	s.Skipped = map[string]bool{}
	if strings.Contains(Text(s), "Skipped:") {
		t.Error("Skipped line present with zero skips")
	}
}

func TestJSONExport(t *testing.T) {
	s := testSnapshot(t)
	data, err := JSON(s)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"meta", "stats", "responses"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("missing top-level %q", key)
		}
	}

	built := BuildJSON(s)
	if built.Meta.ParticipantName != "Sam Rivera" || built.Meta.Mode != domain.ModeLite {
		t.Fatalf("meta = %+v", built.Meta)
	}
	if built.Meta.ExportID == "" {
		t.Fatal("missing export id")
	}
	if built.Stats.Total != 10 || built.Stats.Answered != 2 || built.Stats.Skipped != 1 {
		t.Fatalf("stats = %+v", built.Stats)
	}
	if len(built.Responses) != 10 {
		t.Fatalf("responses = %d entries", len(built.Responses))
	}
	q1 := built.Responses["q01"]
	if q1.Status != domain.StatusAnswered || q1.Response == nil || q1.Response.SelectedValue != "fully" {
		t.Fatalf("q01 entry = %+v", q1)
	}
	if q1.Question.Title != "Trust" || len(q1.Question.Options) == 0 {
		t.Fatalf("q01 question payload = %+v", q1.Question)
	}
	q3 := built.Responses["q03"]
	if q3.Status != domain.StatusUnanswered || q3.Response != nil {
		t.Fatalf("q03 entry = %+v", q3)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("Sam Rivera", "json"); got != "readyforus-sam-rivera.json" {
		t.Fatalf("got %q", got)
	}
	if got := FileName("  ", "txt"); got != "readyforus-participant.txt" {
		t.Fatalf("got %q", got)
	}
}

func TestShareBlock(t *testing.T) {
	text := ShareBlock(testSnapshot(t))
	if !strings.HasPrefix(text, "=== SAM RIVERA'S RESPONSES ===") {
		t.Fatalf("bad opener: %q", text[:40])
	}
	if !strings.Contains(text, "**Q1: Trust**") {
		t.Error("missing question block")
	}
	if !strings.Contains(text, "Answer: Fully, without reservation") {
		t.Error("missing answer line")
	}
	if !strings.Contains(text, "Answer: [Skipped]") {
		t.Error("missing skipped line")
	}
	if !strings.HasSuffix(strings.TrimSpace(text), "=== END OF SAM RIVERA'S RESPONSES ===") {
		t.Error("missing closer")
	}
}

func TestSummaryOnlyAnswered(t *testing.T) {
	text := Summary(testSnapshot(t))
	if !strings.Contains(text, "Trust\n") {
		t.Error("missing answered question")
	}
	if strings.Contains(text, "[Not answered]") {
		t.Error("summary should omit unanswered questions")
	}
}
