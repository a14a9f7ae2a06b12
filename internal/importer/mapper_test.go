package importer

import (
	"reflect"
	"strings"
	"testing"

	"readyforus/internal/domain"
	"readyforus/internal/schema"
)

var trustOptions = []domain.Option{
	{Value: "fully", Label: "Fully, without reservation"},
	{Value: "mostly", Label: "Mostly, with occasional strain"},
	{Value: "building", Label: "Still building it"},
	{Value: "other", Label: "Other"},
}

func TestFindMatchingOptionTiers(t *testing.T) {
	cases := []struct {
		name     string
		imported string
		want     string
	}{
		{"exact value", "fully", "fully"},
		{"normalized value", "Fully", "fully"},
		{"exact label", "still building it", "building"},
		{"normalized label", "Mostly with occasional strain", "mostly"},
		{"substring", "occasional strain", "mostly"},
		{"prefix", "fully_without_hesitation", "fully"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt, ok := FindMatchingOption(tc.imported, trustOptions)
			if !ok || opt.Value != tc.want {
				t.Fatalf("FindMatchingOption(%q) = %+v ok=%v", tc.imported, opt, ok)
			}
		})
	}
	if _, ok := FindMatchingOption("completely unrelated phrase", trustOptions); ok {
		t.Fatal("expected no match")
	}
	if _, ok := FindMatchingOption("", trustOptions); ok {
		t.Fatal("empty input matched")
	}
}

func mustQuestion(t *testing.T, id string) domain.Question {
	t.Helper()
	sc, err := schema.Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	q, ok := sc.Question(id)
	if !ok {
		t.Fatalf("question %s not in schema", id)
	}
	return q
}

func TestMapSingleSelect(t *testing.T) {
	q := mustQuestion(t, "q01")

	res := MapResponse(ClassifyAnswer("Mostly, with occasional strain"), q)
	if !res.FullyMapped || res.Response.SelectedValue != "mostly" {
		t.Fatalf("res = %+v", res)
	}

	// Unmatched input survives as other_text instead of vanishing.
	res = MapResponse(ClassifyAnswer("somewhere in between honestly"), q)
	if res.FullyMapped {
		t.Fatal("expected unmapped")
	}
	if res.Response.SelectedValue != "" || res.Response.OtherText == "" {
		t.Fatalf("res = %+v", res.Response)
	}
}

func TestMapMultiSelect(t *testing.T) {
	q := mustQuestion(t, "q02")

	res := MapResponse(ClassifyAnswer("Quiet time together, During hard conversations"), q)
	if !res.FullyMapped {
		t.Fatalf("res = %+v", res)
	}
	if !reflect.DeepEqual(res.Response.SelectedValues, []string{"quiet_time", "hard_conversations"}) {
		t.Fatalf("values = %v", res.Response.SelectedValues)
	}

	res = MapResponse(ClassifyAnswer("Quiet time together, Other (Other: long drives)"), q)
	if res.Response.OtherText != "long drives" {
		t.Fatalf("other = %q", res.Response.OtherText)
	}

	// other_text is dropped when "other" did not resolve.
	raw := ClassifyAnswer("Quiet time together")
	raw.OtherText = "stray"
	res = MapResponse(raw, q)
	if res.Response.OtherText != "" {
		t.Fatalf("other = %q", res.Response.OtherText)
	}

	res = MapResponse(ClassifyAnswer("nothing from this list at all"), q)
	if res.FullyMapped || len(res.Response.SelectedValues) != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestMapFreeText(t *testing.T) {
	q := mustQuestion(t, "q04")
	res := MapResponse(ClassifyAnswer("We talk most evenings."), q)
	if !res.FullyMapped || res.Response.Text != "We talk most evenings." {
		t.Fatalf("res = %+v", res)
	}
	res = MapResponse(RawAnswer{}, q)
	if res.FullyMapped {
		t.Fatal("empty text should be unmapped")
	}
}

func TestMapCompoundWithAliases(t *testing.T) {
	q := mustQuestion(t, "q06")
	raw := ClassifyAnswer("How often: Weekly; Format: Phone call, Video chat; When do we talk: when either of us goes quiet")

	res := MapResponse(raw, q)
	if !res.FullyMapped {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if v := res.Response.Fields["frequency"]; v.Text != "weekly" {
		t.Fatalf("frequency = %+v", v)
	}
	if v := res.Response.Fields["format"]; len(v.List) != 2 {
		t.Fatalf("format = %+v", v)
	}
	if v := res.Response.Fields["trigger_rule"]; !strings.Contains(v.Text, "goes quiet") {
		t.Fatalf("trigger_rule = %+v", v)
	}
	if res.Response.ImportedText == "" {
		t.Fatal("imported text escape hatch missing")
	}
}

func TestMapCompoundNumberParsing(t *testing.T) {
	q := mustQuestion(t, "q09")
	raw := ClassifyAnswer("Milestone: Meeting each other's families; How many months: 6")
	res := MapResponse(raw, q)
	if v := res.Response.Fields["milestone_text"]; !strings.Contains(v.Text, "families") {
		t.Fatalf("milestone = %+v", v)
	}
	if v := res.Response.Fields["months_away"]; v.Num == nil || *v.Num != 6 {
		t.Fatalf("months = %+v", v)
	}

	// A number that fails to parse becomes null, not garbage.
	raw = ClassifyAnswer("Milestone: a trip together; How many months: soonish")
	res = MapResponse(raw, q)
	if v := res.Response.Fields["months_away"]; v.Num != nil {
		t.Fatalf("months = %+v", v)
	}
}

func TestMapCompoundFieldWarnings(t *testing.T) {
	q := mustQuestion(t, "q06")
	raw := ClassifyAnswer("How often: every blue moon; Format: Carrier pigeon; Something feels off: we pause")
	res := MapResponse(raw, q)
	if res.FullyMapped {
		t.Fatal("expected review flag")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected field warnings")
	}
	for _, w := range res.Warnings {
		if !strings.Contains(w, "Field ") {
			t.Errorf("warning without field name: %q", w)
		}
	}
}

func TestValidateAndMapDropsUnknownIDs(t *testing.T) {
	sc, err := schema.Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	questions := sc.QuestionsByID(domain.ModeLite)
	answers := map[string]RawAnswer{
		"q01": ClassifyAnswer("Mostly, with occasional strain"),
		"q42": ClassifyAnswer("an answer for a question that no longer exists"),
	}

	result := ValidateAndMap(answers, questions)
	if _, ok := result.Mapped["q42"]; ok {
		t.Fatal("unknown id kept")
	}
	if len(result.NeedsReview) != 1 || result.NeedsReview[0] != "q42" {
		t.Fatalf("needs review = %v", result.NeedsReview)
	}
	if ws := result.FieldWarnings["q42"]; len(ws) != 1 || !strings.Contains(ws[0], "not found") {
		t.Fatalf("warnings = %v", ws)
	}
	if result.Mapped["q01"].SelectedValue != "mostly" {
		t.Fatalf("q01 = %+v", result.Mapped["q01"])
	}
}

func TestValidateAndMapFlagsPartialMappings(t *testing.T) {
	sc, err := schema.Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	questions := sc.QuestionsByID(domain.ModeLite)
	answers := map[string]RawAnswer{
		"q01": ClassifyAnswer("no option says this"),
	}
	result := ValidateAndMap(answers, questions)
	if len(result.NeedsReview) != 1 || result.NeedsReview[0] != "q01" {
		t.Fatalf("needs review = %v", result.NeedsReview)
	}
	// The unmatched text survives for manual recovery.
	if result.Mapped["q01"].OtherText == "" {
		t.Fatalf("q01 = %+v", result.Mapped["q01"])
	}
}
