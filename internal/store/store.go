package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"readyforus/internal/domain"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("not found")

// Keys used in the kv table.
const (
	keyResponses   = "responses"
	keySkipped     = "skipped"
	keyProgress    = "progress"
	keyMode        = "mode"
	keyParticipant = "participant_name"
	keyCompleted   = "completed_modes"
)

// Store persists session state as JSON values in the kv table.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	ts := s.now().UTC().Format(time.RFC3339)
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO kv(key,value,updated_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(data), ts)
	return err
}

func (s Store) get(ctx context.Context, key string, v any) error {
	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (s Store) SaveResponses(ctx context.Context, responses map[string]domain.Response) error {
	return s.put(ctx, keyResponses, responses)
}

func (s Store) LoadResponses(ctx context.Context) (map[string]domain.Response, error) {
	out := map[string]domain.Response{}
	err := s.get(ctx, keyResponses, &out)
	if err == ErrNotFound {
		return map[string]domain.Response{}, nil
	}
	return out, err
}

func (s Store) SaveSkipped(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.put(ctx, keySkipped, ids)
}

func (s Store) LoadSkipped(ctx context.Context) ([]string, error) {
	var out []string
	err := s.get(ctx, keySkipped, &out)
	if err == ErrNotFound {
		return nil, nil
	}
	return out, err
}

func (s Store) SaveProgress(ctx context.Context, index int) error {
	return s.put(ctx, keyProgress, index)
}

func (s Store) LoadProgress(ctx context.Context) (int, error) {
	var idx int
	err := s.get(ctx, keyProgress, &idx)
	if err == ErrNotFound {
		return 0, nil
	}
	return idx, err
}

func (s Store) SaveMode(ctx context.Context, mode domain.Mode) error {
	return s.put(ctx, keyMode, mode)
}

// LoadMode returns ErrNotFound when no session has been started.
func (s Store) LoadMode(ctx context.Context) (domain.Mode, error) {
	var mode domain.Mode
	err := s.get(ctx, keyMode, &mode)
	return mode, err
}

func (s Store) SaveParticipantName(ctx context.Context, name string) error {
	return s.put(ctx, keyParticipant, name)
}

func (s Store) LoadParticipantName(ctx context.Context) (string, error) {
	var name string
	err := s.get(ctx, keyParticipant, &name)
	if err == ErrNotFound {
		return "", nil
	}
	return name, err
}

// CompletedModes lists modes whose question set has been fully answered
// at least once, in the order they were completed.
func (s Store) CompletedModes(ctx context.Context) ([]domain.Mode, error) {
	var out []domain.Mode
	err := s.get(ctx, keyCompleted, &out)
	if err == ErrNotFound {
		return nil, nil
	}
	return out, err
}

func (s Store) MarkModeCompleted(ctx context.Context, mode domain.Mode) error {
	modes, err := s.CompletedModes(ctx)
	if err != nil {
		return err
	}
	for _, m := range modes {
		if m == mode {
			return nil
		}
	}
	return s.put(ctx, keyCompleted, append(modes, mode))
}

// ClearAll wipes every kv entry. Participant name survives a reset, so
// callers that want to keep it must re-save it afterwards.
func (s Store) ClearAll(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM kv`)
	return err
}
