package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readyforus/internal/domain"
	"readyforus/internal/events"
	"readyforus/internal/schema"
	"readyforus/internal/store"
)

var (
	// ErrNoSession is returned when no check-in has been started yet.
	ErrNoSession = errors.New("no session started")
	// ErrUnknownQuestion is returned for ids outside the active set.
	ErrUnknownQuestion = errors.New("unknown question")
)

// Engine drives one participant's check-in session: position, responses,
// skips, and the lite-to-full upgrade.
type Engine struct {
	DB     *sql.DB
	Store  store.Store
	Schema *schema.Loader
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB, sc *schema.Loader) Engine {
	return Engine{
		DB:     db,
		Store:  store.Store{DB: db},
		Schema: sc,
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Session is the loaded state of a check-in.
type Session struct {
	Mode      domain.Mode
	Index     int
	Questions []domain.Question
	Responses map[string]domain.Response
	Skipped   map[string]bool
}

// Init starts a fresh session in the given mode. Existing responses for
// the mode are kept; position is preserved too.
func (e Engine) Init(ctx context.Context, mode domain.Mode) (Session, error) {
	prev, err := e.Store.LoadMode(ctx)
	fresh := errors.Is(err, store.ErrNotFound)
	if err != nil && !fresh {
		return Session{}, err
	}
	if !fresh && prev != mode {
		return e.initWithUpgrade(ctx, mode)
	}
	if err := e.Store.SaveMode(ctx, mode); err != nil {
		return Session{}, err
	}
	if fresh {
		if err := e.Events.Log(ctx, events.TypeSessionStarted, "session", string(mode), events.EventPayload{"mode": mode}); err != nil {
			return Session{}, err
		}
	}
	return e.Load(ctx)
}

// Load reads the current session. ErrNoSession when none was started.
func (e Engine) Load(ctx context.Context) (Session, error) {
	mode, err := e.Store.LoadMode(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	responses, err := e.Store.LoadResponses(ctx)
	if err != nil {
		return Session{}, err
	}
	skippedIDs, err := e.Store.LoadSkipped(ctx)
	if err != nil {
		return Session{}, err
	}
	index, err := e.Store.LoadProgress(ctx)
	if err != nil {
		return Session{}, err
	}
	questions := e.Schema.Questions(mode)
	if index < 0 {
		index = 0
	}
	if index >= len(questions) {
		index = len(questions) - 1
	}
	skipped := map[string]bool{}
	for _, id := range skippedIDs {
		skipped[id] = true
	}
	return Session{
		Mode:      mode,
		Index:     index,
		Questions: questions,
		Responses: responses,
		Skipped:   skipped,
	}, nil
}

// initWithUpgrade switches mode while retaining every saved response.
// Position moves to the last answered question in the new ordering
// (0 when nothing is answered), and skips outside the new set are
// dropped.
func (e Engine) initWithUpgrade(ctx context.Context, mode domain.Mode) (Session, error) {
	responses, err := e.Store.LoadResponses(ctx)
	if err != nil {
		return Session{}, err
	}
	skippedIDs, err := e.Store.LoadSkipped(ctx)
	if err != nil {
		return Session{}, err
	}
	questions := e.Schema.Questions(mode)
	inSet := map[string]domain.Question{}
	for _, q := range questions {
		inSet[q.ID] = q
	}

	var kept []string
	for _, id := range skippedIDs {
		if _, ok := inSet[id]; ok {
			kept = append(kept, id)
		}
	}

	lastAnswered := -1
	for i, q := range questions {
		if r, ok := responses[q.ID]; ok && domain.Answered(q, r) {
			lastAnswered = i
		}
	}
	index := lastAnswered
	if index < 0 {
		index = 0
	}

	if err := e.Store.SaveMode(ctx, mode); err != nil {
		return Session{}, err
	}
	if err := e.Store.SaveSkipped(ctx, kept); err != nil {
		return Session{}, err
	}
	if err := e.Store.SaveProgress(ctx, index); err != nil {
		return Session{}, err
	}
	if err := e.Events.Log(ctx, events.TypeModeUpgraded, "session", string(mode), events.EventPayload{"mode": mode, "retained": len(responses)}); err != nil {
		return Session{}, err
	}
	return e.Load(ctx)
}

// CanUpgradeToFull reports whether the session is in lite mode.
func (e Engine) CanUpgradeToFull(ctx context.Context) (bool, error) {
	mode, err := e.Store.LoadMode(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNoSession
	}
	if err != nil {
		return false, err
	}
	return mode == domain.ModeLite, nil
}

// Current returns the question at the session position.
func (e Engine) Current(ctx context.Context) (domain.Question, int, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, 0, err
	}
	return s.Questions[s.Index], s.Index, nil
}

// Next advances one question. At the end it stays put and reports false.
func (e Engine) Next(ctx context.Context) (domain.Question, bool, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, false, err
	}
	if s.Index+1 >= len(s.Questions) {
		return s.Questions[s.Index], false, nil
	}
	idx := s.Index + 1
	if err := e.Store.SaveProgress(ctx, idx); err != nil {
		return domain.Question{}, false, err
	}
	return s.Questions[idx], true, nil
}

// Previous moves back one question. At the start it stays put and
// reports false.
func (e Engine) Previous(ctx context.Context) (domain.Question, bool, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, false, err
	}
	if s.Index == 0 {
		return s.Questions[0], false, nil
	}
	idx := s.Index - 1
	if err := e.Store.SaveProgress(ctx, idx); err != nil {
		return domain.Question{}, false, err
	}
	return s.Questions[idx], true, nil
}

// JumpTo moves to the question with the given id.
func (e Engine) JumpTo(ctx context.Context, questionID string) (domain.Question, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for i, q := range s.Questions {
		if q.ID == questionID {
			if err := e.Store.SaveProgress(ctx, i); err != nil {
				return domain.Question{}, err
			}
			return q, nil
		}
	}
	return domain.Question{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
}

// JumpToIndex moves to a zero-based position in the active set.
func (e Engine) JumpToIndex(ctx context.Context, index int) (domain.Question, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	if index < 0 || index >= len(s.Questions) {
		return domain.Question{}, fmt.Errorf("index %d out of range [0,%d)", index, len(s.Questions))
	}
	if err := e.Store.SaveProgress(ctx, index); err != nil {
		return domain.Question{}, err
	}
	return s.Questions[index], nil
}

// GoToFirstSkipped jumps to the earliest skipped question, if any.
func (e Engine) GoToFirstSkipped(ctx context.Context) (domain.Question, bool, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Question{}, false, err
	}
	for i, q := range s.Questions {
		if statusOf(q, s) == domain.StatusSkipped {
			if err := e.Store.SaveProgress(ctx, i); err != nil {
				return domain.Question{}, false, err
			}
			return q, true, nil
		}
	}
	return domain.Question{}, false, nil
}

// SaveResponse stores a response and clears any skip on the question.
func (e Engine) SaveResponse(ctx context.Context, questionID string, r domain.Response) error {
	s, err := e.Load(ctx)
	if err != nil {
		return err
	}
	var q domain.Question
	found := false
	for _, cand := range s.Questions {
		if cand.ID == questionID {
			q, found = cand, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	s.Responses[questionID] = r
	if err := e.Store.SaveResponses(ctx, s.Responses); err != nil {
		return err
	}
	if s.Skipped[questionID] {
		delete(s.Skipped, questionID)
		if err := e.Store.SaveSkipped(ctx, keys(s.Questions, s.Skipped)); err != nil {
			return err
		}
	}
	if err := e.Events.Log(ctx, events.TypeResponseSaved, "question", questionID, events.EventPayload{"answered": domain.Answered(q, r)}); err != nil {
		return err
	}
	return e.markCompletionIfDone(ctx)
}

// Skip marks a question skipped. A saved response stays in place; an
// answered question reads as answered until the answer itself changes.
func (e Engine) Skip(ctx context.Context, questionID string) error {
	s, err := e.Load(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, q := range s.Questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !s.Skipped[questionID] {
		s.Skipped[questionID] = true
		if err := e.Store.SaveSkipped(ctx, keys(s.Questions, s.Skipped)); err != nil {
			return err
		}
	}
	return e.Events.Log(ctx, events.TypeQuestionSkipped, "question", questionID, nil)
}

// keys returns skipped ids in question order.
func keys(questions []domain.Question, skipped map[string]bool) []string {
	var out []string
	for _, q := range questions {
		if skipped[q.ID] {
			out = append(out, q.ID)
		}
	}
	return out
}

// Status classifies one question in the session.
func (e Engine) Status(ctx context.Context, questionID string) (domain.QuestionStatus, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return "", err
	}
	for _, q := range s.Questions {
		if q.ID == questionID {
			return statusOf(q, s), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
}

// statusOf gives answered precedence over skipped: a skip on an
// answered question leaves it answered.
func statusOf(q domain.Question, s Session) domain.QuestionStatus {
	if r, ok := s.Responses[q.ID]; ok && domain.Answered(q, r) {
		return domain.StatusAnswered
	}
	if s.Skipped[q.ID] {
		return domain.StatusSkipped
	}
	return domain.StatusUnanswered
}

// Stats computes progress over the active question set.
func (e Engine) Stats(ctx context.Context) (domain.Stats, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return SessionStats(s), nil
}

// SessionStats is the pure form of Stats for callers that already hold
// a loaded session.
func SessionStats(s Session) domain.Stats {
	st := domain.Stats{Total: len(s.Questions)}
	for _, q := range s.Questions {
		switch statusOf(q, s) {
		case domain.StatusAnswered:
			st.Answered++
		case domain.StatusSkipped:
			st.Skipped++
		default:
			st.Unanswered++
		}
	}
	if st.Total > 0 {
		st.Progress = (st.Answered * 100) / st.Total
	}
	return st
}

// SkippedQuestions lists questions whose status is skipped, in order.
func (e Engine) SkippedQuestions(ctx context.Context) ([]domain.Question, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Question
	for _, q := range s.Questions {
		if statusOf(q, s) == domain.StatusSkipped {
			out = append(out, q)
		}
	}
	return out, nil
}

// IsComplete reports whether every active question is answered.
func (e Engine) IsComplete(ctx context.Context) (bool, error) {
	st, err := e.Stats(ctx)
	if err != nil {
		return false, err
	}
	return st.Answered == st.Total, nil
}

func (e Engine) markCompletionIfDone(ctx context.Context) error {
	s, err := e.Load(ctx)
	if err != nil {
		return err
	}
	st := SessionStats(s)
	if st.Answered != st.Total {
		return nil
	}
	return e.Store.MarkModeCompleted(ctx, s.Mode)
}

// Reset wipes the session but keeps the participant name.
func (e Engine) Reset(ctx context.Context) error {
	name, err := e.Store.LoadParticipantName(ctx)
	if err != nil {
		return err
	}
	if err := e.Store.ClearAll(ctx); err != nil {
		return err
	}
	if name != "" {
		if err := e.Store.SaveParticipantName(ctx, name); err != nil {
			return err
		}
	}
	return e.Events.Log(ctx, events.TypeSessionReset, "session", "", nil)
}

// ReplaceResponses overwrites session state from an import. Imported
// responses win over existing ones; skips are the union restricted to
// questions that are not answered afterwards. Position lands on the
// last answered question, 0 when none.
func (e Engine) ReplaceResponses(ctx context.Context, mode domain.Mode, responses map[string]domain.Response, skipped []string, source string) error {
	existing, err := e.Store.LoadResponses(ctx)
	if err != nil {
		return err
	}
	prevSkipped, err := e.Store.LoadSkipped(ctx)
	if err != nil {
		return err
	}
	merged := map[string]domain.Response{}
	for id, r := range existing {
		merged[id] = r
	}
	for id, r := range responses {
		merged[id] = r
	}

	questions := e.Schema.Questions(mode)
	byID := map[string]domain.Question{}
	for _, q := range questions {
		byID[q.ID] = q
	}
	skipSet := map[string]bool{}
	for _, id := range append(append([]string{}, prevSkipped...), skipped...) {
		q, ok := byID[id]
		if !ok {
			continue
		}
		if r, answered := merged[id]; answered && domain.Answered(q, r) {
			continue
		}
		skipSet[id] = true
	}

	if err := e.Store.SaveMode(ctx, mode); err != nil {
		return err
	}
	if err := e.Store.SaveResponses(ctx, merged); err != nil {
		return err
	}
	if err := e.Store.SaveSkipped(ctx, keys(questions, skipSet)); err != nil {
		return err
	}
	lastAnswered := -1
	for i, q := range questions {
		if r, ok := merged[q.ID]; ok && domain.Answered(q, r) {
			lastAnswered = i
		}
	}
	index := lastAnswered
	if index < 0 {
		index = 0
	}
	if err := e.Store.SaveProgress(ctx, index); err != nil {
		return err
	}
	if err := e.Events.Log(ctx, events.TypeImportCommitted, "session", string(mode), events.EventPayload{"source": source, "responses": len(responses)}); err != nil {
		return err
	}
	return e.markCompletionIfDone(ctx)
}
