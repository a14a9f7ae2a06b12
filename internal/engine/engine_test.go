package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"readyforus/internal/db"
	"readyforus/internal/domain"
	"readyforus/internal/migrate"
	"readyforus/internal/schema"
)

func testEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sc, err := schema.Load()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	e := New(conn, sc)
	e.Now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestInitAndNavigation(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	s, err := e.Init(ctx, domain.ModeLite)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(s.Questions) != 10 || s.Index != 0 {
		t.Fatalf("session = %d questions at index %d", len(s.Questions), s.Index)
	}

	q, moved, err := e.Next(ctx)
	if err != nil || !moved || q.ID != "q02" {
		t.Fatalf("next = %s moved=%v err=%v", q.ID, moved, err)
	}
	q, moved, err = e.Previous(ctx)
	if err != nil || !moved || q.ID != "q01" {
		t.Fatalf("prev = %s moved=%v err=%v", q.ID, moved, err)
	}
	_, moved, err = e.Previous(ctx)
	if err != nil || moved {
		t.Fatalf("prev at start moved=%v err=%v", moved, err)
	}

	q, err = e.JumpTo(ctx, "q07")
	if err != nil || q.ID != "q07" {
		t.Fatalf("jump = %s err=%v", q.ID, err)
	}
	if _, err := e.JumpTo(ctx, "q99"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}

	q, err = e.JumpToIndex(ctx, 9)
	if err != nil || q.ID != "q10" {
		t.Fatalf("jump index = %s err=%v", q.ID, err)
	}
	_, moved, err = e.Next(ctx)
	if err != nil || moved {
		t.Fatalf("next at end moved=%v err=%v", moved, err)
	}
}

func TestSaveSkipAndStats(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Init(ctx, domain.ModeLite); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := e.SaveResponse(ctx, "q01", domain.Response{SelectedValue: "fully"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.Skip(ctx, "q02"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	st, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 10 || st.Answered != 1 || st.Skipped != 1 || st.Unanswered != 8 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Answered+st.Skipped+st.Unanswered != st.Total {
		t.Fatalf("stats do not sum: %+v", st)
	}
	if st.Progress != 10 {
		t.Fatalf("progress = %d", st.Progress)
	}

	status, err := e.Status(ctx, "q02")
	if err != nil || status != domain.StatusSkipped {
		t.Fatalf("q02 status = %s err=%v", status, err)
	}

	// Answering a skipped question clears the skip.
	if err := e.SaveResponse(ctx, "q02", domain.Response{SelectedValues: []string{"quiet_time"}}); err != nil {
		t.Fatalf("save q02: %v", err)
	}
	status, err = e.Status(ctx, "q02")
	if err != nil || status != domain.StatusAnswered {
		t.Fatalf("q02 status after answer = %s err=%v", status, err)
	}

	// Skipping an answered question keeps the response and the
	// answered status: answered takes precedence over skipped.
	if err := e.Skip(ctx, "q01"); err != nil {
		t.Fatalf("skip q01: %v", err)
	}
	status, err = e.Status(ctx, "q01")
	if err != nil || status != domain.StatusAnswered {
		t.Fatalf("q01 status after skip = %s err=%v", status, err)
	}
	s, err := e.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Responses["q01"].SelectedValue != "fully" {
		t.Fatalf("q01 response removed by skip: %+v", s.Responses["q01"])
	}
	skipped, err := e.SkippedQuestions(ctx)
	if err != nil {
		t.Fatalf("skipped: %v", err)
	}
	for _, q := range skipped {
		if q.ID == "q01" {
			t.Fatal("answered q01 listed as skipped")
		}
	}
}

func TestEmptyResponseCountsUnanswered(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Init(ctx, domain.ModeLite); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := e.SaveResponse(ctx, "q04", domain.Response{Text: "   "}); err != nil {
		t.Fatalf("save: %v", err)
	}
	status, err := e.Status(ctx, "q04")
	if err != nil || status != domain.StatusUnanswered {
		t.Fatalf("q04 status = %s err=%v", status, err)
	}
}

func TestGoToFirstSkipped(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Init(ctx, domain.ModeLite); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, found, err := e.GoToFirstSkipped(ctx)
	if err != nil || found {
		t.Fatalf("none skipped: found=%v err=%v", found, err)
	}
	if err := e.Skip(ctx, "q05"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := e.Skip(ctx, "q03"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	q, found, err := e.GoToFirstSkipped(ctx)
	if err != nil || !found || q.ID != "q03" {
		t.Fatalf("first skipped = %s found=%v err=%v", q.ID, found, err)
	}
}

func TestUpgradeRetainsResponses(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	lite, err := e.Init(ctx, domain.ModeLite)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, q := range lite.Questions[:3] {
		if err := e.SaveResponse(ctx, q.ID, responseFor(q)); err != nil {
			t.Fatalf("save %s: %v", q.ID, err)
		}
	}
	if err := e.Skip(ctx, "q04"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	ok, err := e.CanUpgradeToFull(ctx)
	if err != nil || !ok {
		t.Fatalf("can upgrade = %v err=%v", ok, err)
	}

	s, err := e.Init(ctx, domain.ModeFull)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if s.Mode != domain.ModeFull || len(s.Questions) != 24 {
		t.Fatalf("after upgrade: mode=%s questions=%d", s.Mode, len(s.Questions))
	}
	if len(s.Responses) != 3 {
		t.Fatalf("responses lost: %d", len(s.Responses))
	}
	// Position lands on the last answered question, q03.
	if s.Index != 2 {
		t.Fatalf("index = %d", s.Index)
	}
	if !s.Skipped["q04"] {
		t.Fatal("skip on q04 dropped")
	}

	ok, err = e.CanUpgradeToFull(ctx)
	if err != nil || ok {
		t.Fatalf("can upgrade from full = %v err=%v", ok, err)
	}
}

func TestCompletionMarksMode(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Init(ctx, domain.ModeLite)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, q := range s.Questions {
		if err := e.SaveResponse(ctx, q.ID, responseFor(q)); err != nil {
			t.Fatalf("save %s: %v", q.ID, err)
		}
	}
	done, err := e.IsComplete(ctx)
	if err != nil || !done {
		t.Fatalf("complete = %v err=%v", done, err)
	}
	modes, err := e.Store.CompletedModes(ctx)
	if err != nil || len(modes) != 1 || modes[0] != domain.ModeLite {
		t.Fatalf("completed modes = %v err=%v", modes, err)
	}
}

func TestResetKeepsName(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Init(ctx, domain.ModeLite); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := e.Store.SaveParticipantName(ctx, "Jordan"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := e.SaveResponse(ctx, "q01", domain.Response{SelectedValue: "fully"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := e.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after reset, got %v", err)
	}
	name, err := e.Store.LoadParticipantName(ctx)
	if err != nil || name != "Jordan" {
		t.Fatalf("name = %q err=%v", name, err)
	}
}

func TestReplaceResponsesMerge(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Init(ctx, domain.ModeLite); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := e.SaveResponse(ctx, "q01", domain.Response{SelectedValue: "building"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.Skip(ctx, "q02"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	imported := map[string]domain.Response{
		"q01": {SelectedValue: "fully"},
		"q02": {SelectedValues: []string{"quiet_time"}},
		"q03": {SelectedValue: "usually"},
	}
	if err := e.ReplaceResponses(ctx, domain.ModeLite, imported, []string{"q05"}, "checkin.txt"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	s, err := e.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Responses["q01"].SelectedValue != "fully" {
		t.Fatalf("imported response did not win: %+v", s.Responses["q01"])
	}
	// q02 is now answered, so its old skip is gone; q05 stays skipped.
	if s.Skipped["q02"] || !s.Skipped["q05"] {
		t.Fatalf("skipped = %v", s.Skipped)
	}
	// Position lands on q03, the last answered question.
	if s.Index != 2 {
		t.Fatalf("index = %d", s.Index)
	}
}

func responseFor(q domain.Question) domain.Response {
	switch q.Type {
	case domain.SingleSelect:
		return domain.Response{SelectedValue: q.Options[0].Value}
	case domain.MultiSelect:
		return domain.Response{SelectedValues: []string{q.Options[0].Value}}
	case domain.Compound:
		fields := map[string]domain.FieldValue{}
		for _, f := range q.Fields {
			switch f.Type {
			case domain.FieldMultiSelect:
				fields[f.Key] = domain.ListValue([]string{f.Options[0].Value})
			case domain.FieldNumber:
				n := 3
				fields[f.Key] = domain.NumberValue(n)
			case domain.FieldSingleSelect:
				fields[f.Key] = domain.TextValue(f.Options[0].Value)
			default:
				fields[f.Key] = domain.TextValue("something real")
			}
		}
		return domain.Response{Fields: fields}
	default:
		return domain.Response{Text: "a considered answer"}
	}
}
